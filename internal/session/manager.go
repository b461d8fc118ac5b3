// Package session owns the Spotify playback session: connection state,
// token lifecycle, device readiness, and cached remote snapshots.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/justestif/drift/internal/logger"
	"github.com/justestif/drift/internal/spotify"
)

// State is the playback session connection state.
type State int

const (
	// StateDisconnected means no token is held.
	StateDisconnected State = iota
	// StateConnecting means the user agent has been sent to the
	// authorization endpoint and no code has come back yet.
	StateConnecting
	// StateConnectedNoDevice means a token is held but the in-browser
	// device has not reported ready.
	StateConnectedNoDevice
	// StateConnectedReady means the in-browser device is ready.
	StateConnectedReady
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnectedNoDevice:
		return "connected_no_device"
	case StateConnectedReady:
		return "connected_ready"
	default:
		return "disconnected"
	}
}

// ErrDeviceNotReady is returned for playback dispatch while neither the
// in-browser device nor the premium fallback mode is available.
var ErrDeviceNotReady = errors.New("device not ready")

// ErrNotConnected is returned for operations that need an authenticated
// session.
var ErrNotConnected = errors.New("not connected")

// Scopes requested from the authorization endpoint. Fixed capability set.
var Scopes = []string{
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopeStreaming,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserReadPrivate,
}

// TokenRepository persists the token pair across restarts.
type TokenRepository interface {
	Load(ctx context.Context) (*oauth2.Token, error) // (nil, nil) when absent
	Save(ctx context.Context, token *oauth2.Token) error
	Delete(ctx context.Context) error
}

// Device is the in-browser playback device.
type Device struct {
	ID    string `json:"id,omitempty"`
	Ready bool   `json:"ready"`
}

// Result is the {success, error}-shaped outcome surfaced to the
// presentation layer. Error carries the literal message to display.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Snapshot is the presentation view of the session. It never carries the
// access token.
type Snapshot struct {
	State           string              `json:"state"`
	Connected       bool                `json:"connected"`
	PremiumRequired bool                `json:"premiumRequired"`
	Device          Device              `json:"device"`
	User            *spotify.User       `json:"user,omitempty"`
	NowPlaying      *spotify.NowPlaying `json:"nowPlaying,omitempty"`
	Playlists       []spotify.Playlist  `json:"playlists,omitempty"`
}

// Manager is the playback session state machine. All state transitions are
// serialized by the mutex; remote calls happen outside it, fenced by a
// generation counter so results landing after a logout are discarded.
type Manager struct {
	mu sync.Mutex

	client *spotify.Client
	tokens TokenRepository
	auth   *spotifyauth.Authenticator

	state           State
	token           *oauth2.Token
	user            *spotify.User
	device          Device
	premiumRequired bool
	nowPlaying      *spotify.NowPlaying
	playlists       []spotify.Playlist

	generation uint64
	livePush   bool

	refreshMu    sync.Mutex // serializes refresh attempts
	pollInterval time.Duration
	onChange     func()
}

// Config wires a Manager.
type Config struct {
	Client       *spotify.Client
	Tokens       TokenRepository
	ClientID     string
	ClientSecret string
	RedirectURI  string
	PollInterval time.Duration
}

// New creates a Manager and installs it as the client's token source.
func New(cfg Config) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}

	m := &Manager{
		client: cfg.Client,
		tokens: cfg.Tokens,
		auth: spotifyauth.New(
			spotifyauth.WithClientID(cfg.ClientID),
			spotifyauth.WithClientSecret(cfg.ClientSecret),
			spotifyauth.WithRedirectURL(cfg.RedirectURI),
			spotifyauth.WithScopes(Scopes...),
		),
		pollInterval: cfg.PollInterval,
	}
	cfg.Client.SetTokenSource(m)
	return m
}

// OnChange installs a callback invoked after state changes, outside the
// lock. Used to push snapshots to connected pages.
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Bootstrap checks for a persisted token on startup and, if present, marks
// the session connected.
func (m *Manager) Bootstrap(ctx context.Context) {
	token, err := m.tokens.Load(ctx)
	if err != nil {
		logger.Warn("loading persisted token", logger.ErrField(err))
		return
	}
	if token == nil || token.RefreshToken == "" && token.AccessToken == "" {
		return
	}

	m.mu.Lock()
	m.token = token
	m.state = StateConnectedNoDevice
	m.mu.Unlock()
	m.notify()

	go m.hydrate(ctx)
}

// LoginURL returns the authorization redirect for the given CSRF state and
// moves the session to connecting. The consent dialog is always shown so a
// different account can be picked.
func (m *Manager) LoginURL(state string) string {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.state = StateConnecting
	}
	m.mu.Unlock()
	return m.auth.AuthURL(state, spotifyauth.ShowDialog)
}

// AbortAuth returns an unfinished login to disconnected, so a failed code
// exchange never strands the session in connecting. Sessions past that
// state and persisted tokens are left alone.
func (m *Manager) AbortAuth() {
	m.mu.Lock()
	if m.state != StateConnecting {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	m.mu.Unlock()
	m.notify()
}

// CompleteAuth records a freshly exchanged token pair and marks the session
// connected. The exchange itself happens exactly once in the callback
// handler; the page strips the code from the address before calling in.
func (m *Manager) CompleteAuth(ctx context.Context, token *oauth2.Token) error {
	if err := m.tokens.Save(ctx, token); err != nil {
		return err
	}

	m.mu.Lock()
	m.token = token
	m.state = StateConnectedNoDevice
	m.premiumRequired = false
	m.mu.Unlock()
	m.notify()

	go m.hydrate(context.WithoutCancel(ctx))
	return nil
}

// hydrate fetches the profile and playlist snapshots after connecting.
func (m *Manager) hydrate(ctx context.Context) {
	gen := m.Generation()

	user, err := m.client.CurrentUser(ctx)
	if err != nil {
		logger.Warn("fetching profile", logger.ErrField(err))
	}

	playlists, perr := m.client.Playlists(ctx)
	if perr != nil {
		logger.Warn("fetching playlists", logger.ErrField(perr))
	}

	m.mu.Lock()
	if m.generation != gen || m.token == nil {
		m.mu.Unlock()
		return
	}
	if err == nil {
		m.user = user
	}
	if perr == nil {
		m.playlists = playlists
	}
	m.mu.Unlock()
	m.notify()
}

// Token implements spotify.TokenSource.
func (m *Manager) Token(context.Context) *oauth2.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Refresh implements spotify.TokenSource: exactly one refresh attempt using
// the stored refresh token. Failure disconnects the session and clears all
// cached remote state.
func (m *Manager) Refresh(ctx context.Context) (*oauth2.Token, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.Lock()
	token := m.token
	m.mu.Unlock()
	if token == nil || token.RefreshToken == "" {
		m.disconnect(ctx, false)
		return nil, spotify.ErrNoToken
	}

	fresh, err := m.client.RefreshToken(ctx, token.RefreshToken)
	if err != nil {
		m.disconnect(ctx, true)
		return nil, err
	}

	if err := m.tokens.Save(ctx, fresh); err != nil {
		logger.Warn("persisting refreshed token", logger.ErrField(err))
	}

	m.mu.Lock()
	m.token = fresh
	m.mu.Unlock()
	return fresh, nil
}

// ClientToken returns a short-lived token handle for the in-browser device
// bridge, refreshing first when the stored token is expired. The value is
// handed to the SDK only and never logged.
func (m *Manager) ClientToken(ctx context.Context) (string, time.Time, error) {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	if token == nil {
		return "", time.Time{}, spotify.ErrNoToken
	}
	if token.AccessToken != "" && (token.Expiry.IsZero() || time.Until(token.Expiry) > time.Minute) {
		return token.AccessToken, token.Expiry, nil
	}

	fresh, err := m.Refresh(ctx)
	if err != nil {
		return "", time.Time{}, err
	}
	return fresh.AccessToken, fresh.Expiry, nil
}

// Logout deletes the persisted tokens and clears all local session and
// cached remote state unconditionally. In-flight results arriving after
// logout are discarded via the generation fence.
func (m *Manager) Logout(ctx context.Context) {
	m.disconnect(ctx, true)
}

func (m *Manager) disconnect(ctx context.Context, deleteTokens bool) {
	if deleteTokens {
		if err := m.tokens.Delete(ctx); err != nil {
			logger.Warn("deleting persisted tokens", logger.ErrField(err))
		}
	}

	m.mu.Lock()
	m.generation++
	m.token = nil
	m.user = nil
	m.device = Device{}
	m.nowPlaying = nil
	m.playlists = nil
	m.premiumRequired = false
	m.livePush = false
	m.state = StateDisconnected
	m.mu.Unlock()
	m.notify()
}

// Generation returns the current session generation.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// StartPlaylist dispatches a "play context" command for the playlist URI.
// It requires the in-browser device to be ready, or the premium-required
// fallback mode, in which case the command targets the user's externally
// active device. The remote call is never issued while neither holds.
func (m *Manager) StartPlaylist(ctx context.Context, uri string) Result {
	m.mu.Lock()
	connected := m.token != nil
	ready := m.device.Ready
	deviceID := m.device.ID
	premium := m.premiumRequired
	m.mu.Unlock()

	if !connected {
		return Result{Error: ErrNotConnected.Error()}
	}
	if !ready && !premium {
		return Result{Error: ErrDeviceNotReady.Error()}
	}
	if !ready {
		// Premium fallback: target the externally active device.
		deviceID = ""
	}

	if err := m.client.Play(ctx, deviceID, uri); err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true}
}

// TogglePlayPause issues play or pause depending on the current snapshot.
// Fire-and-forget; the snapshot catches up via poll or push.
func (m *Manager) TogglePlayPause(ctx context.Context) Result {
	m.mu.Lock()
	connected := m.token != nil
	playing := m.nowPlaying != nil && m.nowPlaying.IsPlaying
	m.mu.Unlock()

	if !connected {
		return Result{Error: ErrNotConnected.Error()}
	}

	action := spotify.ActionPlay
	if playing {
		action = spotify.ActionPause
	}
	if err := m.client.Control(ctx, action); err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true}
}

// SkipTrack issues a next or previous command.
func (m *Manager) SkipTrack(ctx context.Context, direction string) Result {
	m.mu.Lock()
	connected := m.token != nil
	m.mu.Unlock()

	if !connected {
		return Result{Error: ErrNotConnected.Error()}
	}

	action := spotify.ActionNext
	if direction == "previous" {
		action = spotify.ActionPrevious
	}
	if err := m.client.Control(ctx, action); err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true}
}

// TransferPlayback moves playback onto the in-browser device.
func (m *Manager) TransferPlayback(ctx context.Context) Result {
	m.mu.Lock()
	deviceID := m.device.ID
	ready := m.device.Ready
	m.mu.Unlock()

	if !ready || deviceID == "" {
		return Result{Error: ErrDeviceNotReady.Error()}
	}
	if err := m.client.TransferPlayback(ctx, deviceID); err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true}
}

// RefreshNowPlaying polls the playback snapshot and overwrites the cached
// copy wholesale. Results from a previous generation are discarded.
func (m *Manager) RefreshNowPlaying(ctx context.Context) {
	m.mu.Lock()
	if m.token == nil {
		m.mu.Unlock()
		return
	}
	gen := m.generation
	m.mu.Unlock()

	np, err := m.client.CurrentlyPlaying(ctx)
	if err != nil {
		logger.Debug("polling now playing", logger.ErrField(err))
		return
	}

	m.mu.Lock()
	if m.generation != gen || m.livePush {
		m.mu.Unlock()
		return
	}
	m.nowPlaying = np
	m.mu.Unlock()
	m.notify()
}

// RefreshPlaylists re-fetches the playlist snapshot.
func (m *Manager) RefreshPlaylists(ctx context.Context) Result {
	m.mu.Lock()
	if m.token == nil {
		m.mu.Unlock()
		return Result{Error: ErrNotConnected.Error()}
	}
	gen := m.generation
	m.mu.Unlock()

	playlists, err := m.client.Playlists(ctx)
	if err != nil {
		return Result{Error: err.Error()}
	}

	m.mu.Lock()
	if m.generation == gen {
		m.playlists = playlists
	}
	m.mu.Unlock()
	m.notify()
	return Result{Success: true}
}

// RunPolling drives now-playing polls until the context is canceled. The
// poll producer stays silent once the device bridge supplies live push
// updates, keeping the two producers mutually exclusive per generation.
func (m *Manager) RunPolling(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			skip := m.token == nil || m.livePush
			m.mu.Unlock()
			if !skip {
				m.RefreshNowPlaying(ctx)
			}
		}
	}
}

// HandleDeviceReady records the device id reported by the bridge and moves
// the session to ready.
func (m *Manager) HandleDeviceReady(deviceID string) {
	m.mu.Lock()
	if m.token == nil {
		m.mu.Unlock()
		return
	}
	m.device = Device{ID: deviceID, Ready: true}
	m.premiumRequired = false
	m.state = StateConnectedReady
	m.mu.Unlock()
	m.notify()
}

// HandleDeviceNotReady marks the bridge device unavailable.
func (m *Manager) HandleDeviceNotReady() {
	m.mu.Lock()
	m.device.Ready = false
	if m.state == StateConnectedReady {
		m.state = StateConnectedNoDevice
	}
	m.livePush = false
	m.mu.Unlock()
	m.notify()
}

// HandlePlayerState applies a push update from the bridge and switches the
// now-playing producer from poll to push for this generation.
func (m *Manager) HandlePlayerState(np *spotify.NowPlaying) {
	m.mu.Lock()
	if m.token == nil {
		m.mu.Unlock()
		return
	}
	m.livePush = true
	m.nowPlaying = np
	m.mu.Unlock()
	m.notify()
}

// HandleAccountError flags the premium-required fallback mode. Detection is
// by event type, not message sniffing; playback commands then target the
// user's externally active device.
func (m *Manager) HandleAccountError(message string) {
	logger.Warn("bridge account error", logger.String("message", message))
	m.mu.Lock()
	m.premiumRequired = true
	m.mu.Unlock()
	m.notify()
}

// SnapshotView returns the presentation view of the session.
func (m *Manager) SnapshotView() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:           m.state.String(),
		Connected:       m.token != nil,
		PremiumRequired: m.premiumRequired,
		Device:          m.device,
		User:            m.user,
		NowPlaying:      m.nowPlaying,
		Playlists:       m.playlists,
	}
}

func (m *Manager) notify() {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}
