package web

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/justestif/drift/internal/idle"
	"github.com/justestif/drift/internal/logger"
	"github.com/justestif/drift/internal/prefs"
	"github.com/justestif/drift/internal/session"
	"github.com/justestif/drift/internal/spotify"
	"github.com/justestif/drift/internal/timer"
	"github.com/justestif/drift/internal/todo"
)

const stateCookieName = "oauth_state"

// HandlerDeps collects the wired dependencies for Handlers.
type HandlerDeps struct {
	Templates *Templates
	Timer     *timer.Engine
	Todos     *todo.Store
	Prefs     *prefs.Manager
	Session   *session.Manager
	Spotify   *spotify.Client
	Idle      *idle.Monitor
}

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	templates *Templates
	timer     *timer.Engine
	todos     *todo.Store
	prefs     *prefs.Manager
	session   *session.Manager
	spotify   *spotify.Client
	idle      *idle.Monitor
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps HandlerDeps) *Handlers {
	return &Handlers{
		templates: deps.Templates,
		timer:     deps.Timer,
		todos:     deps.Todos,
		prefs:     deps.Prefs,
		session:   deps.Session,
		spotify:   deps.Spotify,
		idle:      deps.Idle,
	}
}

// Home handles the home page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	snap := h.session.SnapshotView()

	data := HomePageData{
		PageData: PageData{
			Title:       "Drift",
			CurrentPath: r.URL.Path,
		},
		Authenticated:   snap.Connected,
		PremiumRequired: snap.PremiumRequired,
		Prefs:           h.prefs.Get(),
		Timer:           h.timer.Snapshot(),
		Pending:         h.todos.Pending(),
		Completed:       h.todos.Completed(),
	}
	if snap.User != nil {
		data.UserName = snap.User.DisplayName
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.Render(w, "home", data); err != nil {
		logger.Error("rendering home", logger.ErrField(err))
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
}

// Login initiates the Spotify OAuth flow (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	// Generate state for CSRF protection
	state, err := generateOAuthState()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	// Store state in cookie for validation on callback
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300, // 5 minutes
	})

	http.Redirect(w, r, h.session.LoginURL(state), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback from Spotify (GET /callback). The
// authorization code is exchanged exactly once; the redirect back to the
// home page leaves no code in the address bar.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}

	state := r.URL.Query().Get("state")
	if state != stateCookie.Value {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	// Clear state cookie
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		h.session.AbortAuth()
		http.Error(w, fmt.Sprintf("Spotify auth error: %s", errMsg), http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.session.AbortAuth()
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	token, err := h.spotify.Exchange(r.Context(), code)
	if err != nil {
		logger.Error("exchanging authorization code", logger.ErrField(err))
		h.session.AbortAuth()
		http.Error(w, "Failed to get token", http.StatusInternalServerError)
		return
	}

	if err := h.session.CompleteAuth(r.Context(), token); err != nil {
		logger.Error("completing auth", logger.ErrField(err))
		h.session.AbortAuth()
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Logout disconnects the playback session (POST /auth/logout). The persisted
// token pair is deleted as well, so a restart stays signed out.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// generateOAuthState creates a random state string for OAuth.
func generateOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
