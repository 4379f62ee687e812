package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// MockIdentityServer creates a test server that mocks the Twitch OAuth token
// endpoint. Point an oauth2.Endpoint's TokenURL at TokenURL().
type MockIdentityServer struct {
	*httptest.Server
	Handlers   map[string]http.HandlerFunc
	tokenCalls atomic.Int64
}

// NewMockIdentityServer creates a new mock identity provider server.
func NewMockIdentityServer(t *testing.T) *MockIdentityServer {
	t.Helper()
	m := &MockIdentityServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/token" {
			m.tokenCalls.Add(1)
		}
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// TokenURL returns the mocked token endpoint URL.
func (m *MockIdentityServer) TokenURL() string { return m.URL + "/oauth2/token" }

// TokenCalls reports how many token requests were received.
func (m *MockIdentityServer) TokenCalls() int { return int(m.tokenCalls.Load()) }

// MockTokenResponse adds a handler that answers token requests with the given
// token pair.
func (m *MockIdentityServer) MockTokenResponse(accessToken, refreshToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_in":    expiresIn,
			"token_type":    "bearer",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockTokenError makes token requests fail with the given status.
func (m *MockIdentityServer) MockTokenError(status int, body string) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body)) //nolint:errcheck // test mock response
	}
}
