package connectedvehicle

import "net/http"

const apiKeyHeader = "vcc-api-key"

// APIKeyTransport is an http.RoundTripper that adds the VCC API key to every request.
type APIKeyTransport struct {
	Key  string
	Base http.RoundTripper
}

// Compile-time check that APIKeyTransport implements http.RoundTripper.
var _ http.RoundTripper = (*APIKeyTransport)(nil)

// RoundTrip implements http.RoundTripper interface.
func (t *APIKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// RoundTrippers must not modify the caller's request
	newReq := req.Clone(req.Context())
	newReq.Header.Set(apiKeyHeader, t.Key)
	if newReq.Header.Get("Accept") == "" {
		newReq.Header.Set("Accept", "application/json")
	}

	return base.RoundTrip(newReq)
}
