package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/twitch"
)

var (
	// ErrNotAuthorized means no credential has been stored yet; the operator
	// must complete the authorization flow (HTTP callback or generate-token).
	ErrNotAuthorized = errors.New("not authorized: no stored credential")
	// ErrRefreshFailed means the stored credential is expired and the refresh
	// round-trip against the identity provider failed. The stored credential
	// is left untouched.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// refreshMargin refreshes a token this close to expiry, so a session opened
// with the returned token doesn't race the expiry.
const refreshMargin = 60 * time.Second

// TokenProvider yields a currently valid access token for the chat session.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticProvider returns a fixed access token from configuration, bypassing
// storage and refresh entirely.
type StaticProvider struct {
	AccessToken string
}

// NewStatic builds a StaticProvider, stripping the conventional "oauth:"
// prefix used in IRC configuration.
func NewStatic(token string) StaticProvider {
	return StaticProvider{AccessToken: strings.TrimPrefix(token, "oauth:")}
}

func (p StaticProvider) Token(ctx context.Context) (string, error) {
	return p.AccessToken, nil
}

// Manager wraps a Store and returns a valid access token, performing a
// refresh_token grant against the Twitch identity endpoint when the stored
// credential is expired or inside the refresh margin. Exactly one refresh is
// in flight at a time: a concurrent caller blocks on the mutex, re-reads the
// freshly persisted credential, and returns it without a second round-trip
// (Twitch invalidates a refresh token after first use).
type Manager struct {
	Store        Store
	ClientID     string
	ClientSecret string

	// Endpoint overrides the token endpoint; zero value means Twitch.
	Endpoint oauth2.Endpoint
	// HTTPClient overrides the client used for the refresh request.
	HTTPClient *http.Client

	mu  sync.Mutex
	now func() time.Time
}

// Token returns a valid access token, refreshing and persisting first if the
// stored one is expired or near expiry.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, err := m.Store.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotAuthorized
		}
		return "", err
	}

	if m.clock().UnixMilli() < cred.ExpiresAt-refreshMargin.Milliseconds() {
		return cred.AccessToken, nil
	}

	slog.Info("access token expired, refreshing", slog.String("component", "auth"))
	fresh, err := m.refresh(ctx, cred)
	if err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}

func (m *Manager) refresh(ctx context.Context, cred Credential) (Credential, error) {
	if m.ClientID == "" || m.ClientSecret == "" {
		return Credential{}, fmt.Errorf("%w: client id/secret not configured", ErrRefreshFailed)
	}
	if cred.RefreshToken == "" {
		return Credential{}, fmt.Errorf("%w: stored credential has no refresh token", ErrRefreshFailed)
	}

	conf := &oauth2.Config{
		ClientID:     m.ClientID,
		ClientSecret: m.ClientSecret,
		Endpoint:     m.endpoint(),
	}
	if m.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.HTTPClient)
	}
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %s", ErrRefreshFailed, err)
	}

	fresh := Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.UnixMilli(),
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cred.RefreshToken
	}
	if tok.Expiry.IsZero() {
		// provider omitted expires_in; assume an hour like the app token path
		fresh.ExpiresAt = m.clock().Add(time.Hour).UnixMilli()
	}
	if err := m.Store.Save(fresh); err != nil {
		return Credential{}, err
	}
	slog.Info("token refreshed", slog.String("component", "auth"),
		slog.Time("expires_at", time.UnixMilli(fresh.ExpiresAt)))
	return fresh, nil
}

func (m *Manager) endpoint() oauth2.Endpoint {
	if m.Endpoint.TokenURL != "" {
		return m.Endpoint
	}
	return twitch.Endpoint
}

func (m *Manager) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}
