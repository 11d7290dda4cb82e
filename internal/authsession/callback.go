package authsession

// CallbackStatus describes what the authorization redirect delivered so far.
type CallbackStatus string

const (
	CallbackPending  CallbackStatus = "pending"
	CallbackReceived CallbackStatus = "received"
	CallbackFailed   CallbackStatus = "failed"
)

// CallbackResult is what arrived at the redirect target for a session.
type CallbackResult struct {
	Status CallbackStatus
	// Code is the authorization code, set when Status is CallbackReceived.
	Code string
	// State is the state value the redirect carried.
	State string
	// Error and ErrorDescription are the vendor's error parameters, set when
	// Status is CallbackFailed.
	Error            string
	ErrorDescription string
}

// RecordCallback attaches the redirect parameters to the session owning state and
// returns that session's ID. A session accepts one callback only.
func (m *Manager) RecordCallback(state, code, errCode, errDescription string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byState[state]
	if !ok {
		return "", ErrSessionNotFound
	}
	s := m.sessions[id]
	if m.expired(s) {
		m.removeLocked(s)
		return "", ErrSessionExpired
	}
	if s.callback.Status != CallbackPending {
		return "", ErrDuplicateCallback
	}

	result := CallbackResult{State: state}
	switch {
	case errCode != "":
		result.Status = CallbackFailed
		result.Error = errCode
		result.ErrorDescription = errDescription
	case code == "":
		result.Status = CallbackFailed
		result.Error = "missing_code"
	default:
		result.Status = CallbackReceived
		result.Code = code
	}
	s.callback = result

	return id, nil
}

// Callback reports the callback state of a session without consuming it.
// Expired sessions are removed and reported as ErrSessionExpired.
func (m *Manager) Callback(sessionID string) (CallbackResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return CallbackResult{}, ErrSessionNotFound
	}
	if m.expired(s) {
		m.removeLocked(s)
		return CallbackResult{}, ErrSessionExpired
	}

	return s.callback, nil
}

// Discard drops a session without completing it, e.g. after a failed callback.
func (m *Manager) Discard(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		m.removeLocked(s)
	}
}
