package configui

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/florianilch/ex30link/internal/authsession"
	"github.com/florianilch/ex30link/internal/volvoid"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 16 << 10

type authorizeResponse struct {
	SessionID        string    `json:"sessionId"`
	AuthorizationURL string    `json:"authorizationUrl"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

type checkCallbackResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type tokenRequest struct {
	SessionID string `json:"sessionId"`
	State     string `json:"state,omitempty"`
	Code      string `json:"code,omitempty"`
}

type tokenResponse struct {
	RefreshTokenPrefix string `json:"refreshTokenPrefix"`
	ExpiresIn          int64  `json:"expiresIn"`
}

type statusResponse struct {
	VIN        string     `json:"vin"`
	Authorized bool       `json:"authorized"`
	Source     string     `json:"source,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	begun, err := s.flow.Begin(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to start authorization", "error", err)
		writeJSONError(r.Context(), w, "could not start authorization", false, http.StatusInternalServerError)
		return
	}

	writeJSON(r.Context(), w, authorizeResponse{
		SessionID:        begun.SessionID,
		AuthorizationURL: begun.AuthorizationURL,
		ExpiresAt:        begun.ExpiresAt,
	}, http.StatusOK)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := q.Get("state")
	if state == "" {
		http.Error(w, "Missing state parameter. Start the authorization from the config UI.", http.StatusBadRequest)
		return
	}

	errCode := q.Get("error")
	sessionID, err := s.flow.RecordCallback(state, q.Get("code"), errCode, q.Get("error_description"))
	switch {
	case errors.Is(err, authsession.ErrSessionExpired):
		http.Error(w, "This authorization has expired. Start again from the config UI.", http.StatusGone)
		return
	case errors.Is(err, authsession.ErrDuplicateCallback):
		http.Error(w, "This authorization was already received. You can close this window.", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, "Unknown authorization. Start again from the config UI.", http.StatusBadRequest)
		return
	}

	slog.InfoContext(r.Context(), "authorization callback received", "session_id", sessionID, "error", errCode)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if errCode != "" {
		fmt.Fprintf(w, "Authorization was not granted (%s). Return to the config UI to try again.\n", errCode)
		return
	}
	fmt.Fprintln(w, "Authorization received. You can close this window and return to the config UI.")
}

func (s *Server) handleCheckCallback(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeJSONError(r.Context(), w, "sessionId is required", false, http.StatusBadRequest)
		return
	}

	cb, err := s.flow.Callback(sessionID)
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}

	resp := checkCallbackResponse{Status: string(cb.Status)}
	if cb.Status == authsession.CallbackFailed {
		resp.Error = describe(cb)
	}
	writeJSON(r.Context(), w, resp, http.StatusOK)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSONError(r.Context(), w, "invalid JSON request body", false, http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		writeJSONError(r.Context(), w, "sessionId is required", false, http.StatusBadRequest)
		return
	}

	tokens, err := s.flow.Finish(r.Context(), req.SessionID, req.State, req.Code)
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}

	writeJSON(r.Context(), w, tokenResponse{
		RefreshTokenPrefix: volvoid.Redact(tokens.RefreshToken),
		ExpiresIn:          tokens.ExpiresIn,
	}, http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{VIN: s.flow.VIN()}
	if s.records != nil {
		if record, ok := s.records.Record(r.Context(), s.flow.VIN()); ok {
			resp.Authorized = true
			resp.Source = string(record.Source)
			resp.UpdatedAt = &record.UpdatedAt
		}
	}
	writeJSON(r.Context(), w, resp, http.StatusOK)
}

// writeFlowError maps authorization errors to responses the UI can act on.
func (s *Server) writeFlowError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, ErrCallbackPending):
		writeJSONError(ctx, w, "authorization not completed in the browser yet", false, http.StatusConflict)
	case errors.Is(err, ErrAuthorizationDenied):
		writeJSONError(ctx, w, err.Error(), true, http.StatusBadRequest)
	case errors.Is(err, authsession.ErrSessionExpired):
		writeJSONError(ctx, w, "authorization session expired, restart authorization", true, http.StatusGone)
	case errors.Is(err, authsession.ErrSessionNotFound), errors.Is(err, authsession.ErrStateMismatch):
		writeJSONError(ctx, w, "unknown or invalid authorization session, restart authorization", true, http.StatusBadRequest)
	case errors.Is(err, volvoid.ErrInvalidGrant):
		writeJSONError(ctx, w, "authorization code expired or already used, restart authorization", true, http.StatusBadRequest)
	case errors.Is(err, volvoid.ErrNetwork):
		// the session is consumed, the next attempt needs a fresh one
		writeJSONError(ctx, w, "Volvo ID is temporarily unreachable, try again shortly", true, http.StatusServiceUnavailable)
	case errors.Is(err, ErrNotStored):
		writeJSONError(ctx, w, "authorized, but the refresh token could not be stored; fix token storage and restart authorization", true, http.StatusInternalServerError)
	case errors.Is(err, volvoid.ErrUnexpectedResponse):
		writeJSONError(ctx, w, "unexpected response from Volvo ID, restart authorization", true, http.StatusBadGateway)
	default:
		slog.ErrorContext(ctx, "authorization failed", "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), true, http.StatusInternalServerError)
	}
}
