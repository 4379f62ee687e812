package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/twitch"

	"github.com/onnwee/twitch-ingest/auth"
	"github.com/onnwee/twitch-ingest/config"
)

// Handlers carries the dependencies for the HTTP endpoints.
type Handlers struct {
	cfg   *config.Config
	store auth.Store
	ready func() bool

	stateMu    sync.RWMutex
	stateStore map[string]time.Time

	// endpoint overrides the identity provider for tests; zero means Twitch.
	endpoint oauth2.Endpoint
}

// NewHandlers builds the handler set.
func NewHandlers(cfg *config.Config, store auth.Store, ready func() bool) *Handlers {
	return &Handlers{
		cfg:        cfg,
		store:      store,
		ready:      ready,
		stateStore: make(map[string]time.Time),
	}
}

// HandleHealthz reports process liveness.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleReadyz reports whether the pipeline is fully connected.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.ready != nil && !h.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

func (h *Handlers) oauthConfig() *oauth2.Config {
	ep := h.endpoint
	if ep.TokenURL == "" {
		ep = twitch.Endpoint
	}
	return &oauth2.Config{
		ClientID:     h.cfg.TwitchClientID,
		ClientSecret: h.cfg.TwitchClientSecret,
		RedirectURL:  h.cfg.TwitchRedirectURI,
		Scopes:       strings.Fields(h.cfg.TwitchScopes),
		Endpoint:     ep,
	}
}

func (h *Handlers) addOAuthState(state string, expiry time.Time) {
	h.stateMu.Lock()
	h.stateStore[state] = expiry
	h.stateMu.Unlock()
}

// HandleOAuthStart initiates the Twitch OAuth flow by redirecting to Twitch.
func (h *Handlers) HandleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if h.cfg.TwitchClientID == "" || h.cfg.TwitchRedirectURI == "" {
		http.Error(w, "oauth not configured (need TWITCH_CLIENT_ID + TWITCH_REDIRECT_URI)", http.StatusBadRequest)
		return
	}
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		http.Error(w, "state gen error", 500)
		return
	}
	st := hex.EncodeToString(b)
	h.addOAuthState(st, time.Now().Add(10*time.Minute))
	http.Redirect(w, r, h.oauthConfig().AuthCodeURL(st), http.StatusFound)
}

// HandleOAuthCallback exchanges the authorization code and persists the
// credential to the token store, completing first-time authorization.
func (h *Handlers) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	st := r.URL.Query().Get("state")
	if code == "" || st == "" {
		http.Error(w, "missing code/state", 400)
		return
	}
	h.stateMu.RLock()
	exp, ok := h.stateStore[st]
	h.stateMu.RUnlock()
	if !ok || time.Now().After(exp) {
		http.Error(w, "invalid state", 400)
		return
	}
	h.stateMu.Lock()
	delete(h.stateStore, st)
	h.stateMu.Unlock()

	tok, err := h.oauthConfig().Exchange(r.Context(), code)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(time.Hour)
	}
	cred := auth.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiry.UnixMilli(),
	}
	if err := h.store.Save(cred); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	slog.Info("authorization complete, credential stored", slog.String("component", "http"))
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"expires": expiry.UTC().Format(time.RFC3339),
	}); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}
