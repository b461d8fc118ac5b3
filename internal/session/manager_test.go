package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/justestif/drift/internal/spotify"
	"github.com/justestif/drift/internal/store"
)

// defaultAPI answers the hydrate endpoints so connect flows don't error.
func defaultAPI(mux *http.ServeMux) {
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"u1","display_name":"Drift User"}`))
	})
	mux.HandleFunc("/me/playlists", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
}

func newTestManager(t *testing.T, mux *http.ServeMux) *Manager {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := spotify.New(
		spotify.Config{ClientID: "id", ClientSecret: "secret", RedirectURI: "http://127.0.0.1/callback"},
		spotify.WithBaseURLs(server.URL, server.URL),
	)
	return New(Config{
		Client:       client,
		Tokens:       NewFileTokenRepository(store.NewFileStore(t.TempDir())),
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURI:  "http://127.0.0.1/callback",
	})
}

func connect(t *testing.T, m *Manager, accessToken string) {
	t.Helper()
	err := m.CompleteAuth(context.Background(), &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: "refresh1",
		Expiry:       time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CompleteAuth() error = %v", err)
	}
}

func TestStartPlaylist_DeviceNotReady(t *testing.T) {
	mux := http.NewServeMux()
	defaultAPI(mux)
	var playCalls atomic.Int32
	mux.HandleFunc("/me/player/play", func(w http.ResponseWriter, r *http.Request) {
		playCalls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	m := newTestManager(t, mux)
	connect(t, m, "fresh")

	got := m.StartPlaylist(context.Background(), "spotify:playlist:p1")
	if got.Success {
		t.Error("StartPlaylist() success = true with no ready device")
	}
	if got.Error != ErrDeviceNotReady.Error() {
		t.Errorf("StartPlaylist() error = %q, want %q", got.Error, ErrDeviceNotReady.Error())
	}
	if playCalls.Load() != 0 {
		t.Error("remote play command issued while device not ready")
	}
}

func TestStartPlaylist_Ready(t *testing.T) {
	mux := http.NewServeMux()
	defaultAPI(mux)
	var gotDevice atomic.Value
	mux.HandleFunc("/me/player/play", func(w http.ResponseWriter, r *http.Request) {
		gotDevice.Store(r.URL.Query().Get("device_id"))
		w.WriteHeader(http.StatusNoContent)
	})

	m := newTestManager(t, mux)
	connect(t, m, "fresh")
	m.HandleDeviceReady("dev42")

	got := m.StartPlaylist(context.Background(), "spotify:playlist:p1")
	if !got.Success {
		t.Fatalf("StartPlaylist() = %+v, want success", got)
	}
	if gotDevice.Load() != "dev42" {
		t.Errorf("device_id = %v, want dev42", gotDevice.Load())
	}
	if state := m.SnapshotView().State; state != "connected_ready" {
		t.Errorf("State = %q, want connected_ready", state)
	}
}

func TestStartPlaylist_PremiumFallback(t *testing.T) {
	mux := http.NewServeMux()
	defaultAPI(mux)
	var gotDevice atomic.Value
	mux.HandleFunc("/me/player/play", func(w http.ResponseWriter, r *http.Request) {
		gotDevice.Store(r.URL.Query().Get("device_id"))
		w.WriteHeader(http.StatusNoContent)
	})

	m := newTestManager(t, mux)
	connect(t, m, "fresh")
	m.HandleAccountError("Account is restricted to premium users only")

	got := m.StartPlaylist(context.Background(), "spotify:playlist:p1")
	if !got.Success {
		t.Fatalf("StartPlaylist() = %+v, want success in premium fallback", got)
	}
	// Fallback targets the externally active device, not the bridge device.
	if gotDevice.Load() != "" {
		t.Errorf("device_id = %v, want empty", gotDevice.Load())
	}
	if !m.SnapshotView().PremiumRequired {
		t.Error("PremiumRequired = false after account error")
	}
}

func TestSkipTrack_RefreshOn401(t *testing.T) {
	var refreshes, skips atomic.Int32
	mux := http.NewServeMux()
	defaultAPI(mux)
	mux.HandleFunc("/me/player/next", func(w http.ResponseWriter, r *http.Request) {
		skips.Add(1)
		if r.Header.Get("Authorization") != "Bearer access2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		_, _ = w.Write([]byte(`{"access_token":"access2","token_type":"Bearer","expires_in":3600}`))
	})

	m := newTestManager(t, mux)
	connect(t, m, "access1")

	got := m.SkipTrack(context.Background(), "next")
	if !got.Success {
		t.Fatalf("SkipTrack() = %+v, want success after refresh+retry", got)
	}
	if refreshes.Load() != 1 {
		t.Errorf("refreshes = %d, want 1", refreshes.Load())
	}
	if skips.Load() != 2 {
		t.Errorf("skip calls = %d, want 2", skips.Load())
	}

	// The new token is in use; no further refresh.
	if got := m.SkipTrack(context.Background(), "next"); !got.Success {
		t.Fatalf("SkipTrack() second = %+v", got)
	}
	if refreshes.Load() != 1 {
		t.Errorf("refreshes = %d after second skip, want still 1", refreshes.Load())
	}
}

func TestRefreshFailureDisconnects(t *testing.T) {
	mux := http.NewServeMux()
	defaultAPI(mux)
	mux.HandleFunc("/me/player/next", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	m := newTestManager(t, mux)
	connect(t, m, "stale")
	m.HandleDeviceReady("dev1")
	m.HandlePlayerState(&spotify.NowPlaying{IsPlaying: true})

	got := m.SkipTrack(context.Background(), "next")
	if got.Success {
		t.Fatal("SkipTrack() succeeded despite failed refresh")
	}
	if !strings.Contains(got.Error, "authentication failed") {
		t.Errorf("error = %q, want authentication failure", got.Error)
	}

	snap := m.SnapshotView()
	if snap.Connected {
		t.Error("Connected = true after failed refresh, want disconnected")
	}
	if snap.State != "disconnected" {
		t.Errorf("State = %q, want disconnected", snap.State)
	}
	if snap.NowPlaying != nil || snap.Playlists != nil {
		t.Error("cached remote state not cleared on disconnect")
	}
}

func TestLogoutDiscardsInFlightResults(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	mux := http.NewServeMux()
	defaultAPI(mux)
	mux.HandleFunc("/me/player/currently-playing", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		_, _ = w.Write([]byte(`{"is_playing":true,"progress_ms":1,"item":{"id":"t1","name":"Late","duration_ms":1000,"artists":[],"album":{"images":[]}}}`))
	})

	m := newTestManager(t, mux)
	connect(t, m, "fresh")

	done := make(chan struct{})
	go func() {
		m.RefreshNowPlaying(context.Background())
		close(done)
	}()

	<-started
	m.Logout(context.Background())
	close(release)
	<-done

	if np := m.SnapshotView().NowPlaying; np != nil {
		t.Errorf("NowPlaying = %+v, want nil: late result must be discarded after logout", np)
	}
}

func TestPushDisablesPoll(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	defaultAPI(mux)
	mux.HandleFunc("/me/player/currently-playing", func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		_, _ = w.Write([]byte(`{"is_playing":false,"progress_ms":0,"item":null}`))
	})

	m := newTestManager(t, mux)
	connect(t, m, "fresh")

	pushed := &spotify.NowPlaying{IsPlaying: true, Track: &spotify.Track{ID: "t9", Title: "Pushed"}}
	m.HandlePlayerState(pushed)

	// Poll writes are suppressed once push is live for this generation.
	m.RefreshNowPlaying(context.Background())

	np := m.SnapshotView().NowPlaying
	if np == nil || np.Track == nil || np.Track.ID != "t9" {
		t.Errorf("NowPlaying = %+v, want the pushed snapshot preserved", np)
	}
}

func TestBootstrapFromPersistedToken(t *testing.T) {
	mux := http.NewServeMux()
	defaultAPI(mux)

	fs := store.NewFileStore(t.TempDir())
	repo := NewFileTokenRepository(fs)
	if err := repo.Save(context.Background(), &oauth2.Token{
		AccessToken:  "persisted",
		RefreshToken: "refresh1",
		Expiry:       time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	client := spotify.New(
		spotify.Config{ClientID: "id", ClientSecret: "secret", RedirectURI: "http://127.0.0.1/callback"},
		spotify.WithBaseURLs(server.URL, server.URL),
	)
	m := New(Config{Client: client, Tokens: repo, ClientID: "id", ClientSecret: "secret", RedirectURI: "http://127.0.0.1/callback"})

	m.Bootstrap(context.Background())
	snap := m.SnapshotView()
	if !snap.Connected {
		t.Error("Connected = false after bootstrap with persisted token")
	}
	if snap.State != "connected_no_device" {
		t.Errorf("State = %q, want connected_no_device", snap.State)
	}
}

func TestDeviceReadyTransitions(t *testing.T) {
	mux := http.NewServeMux()
	defaultAPI(mux)
	m := newTestManager(t, mux)
	connect(t, m, "fresh")

	m.HandleDeviceReady("dev1")
	if got := m.SnapshotView(); got.State != "connected_ready" || !got.Device.Ready {
		t.Errorf("after ready: %+v", got)
	}

	m.HandleDeviceNotReady()
	got := m.SnapshotView()
	if got.State != "connected_no_device" || got.Device.Ready {
		t.Errorf("after not_ready: %+v", got)
	}
}

func TestClientToken_NeverWhenDisconnected(t *testing.T) {
	mux := http.NewServeMux()
	defaultAPI(mux)
	m := newTestManager(t, mux)

	if _, _, err := m.ClientToken(context.Background()); err == nil {
		t.Error("ClientToken() error = nil while disconnected, want error")
	}
}

func TestLoginURL_ForcesDialogAndStartsConnecting(t *testing.T) {
	mux := http.NewServeMux()
	defaultAPI(mux)
	m := newTestManager(t, mux)

	url := m.LoginURL("state123")
	if !strings.Contains(url, "show_dialog=true") {
		t.Errorf("LoginURL() = %q, want show_dialog=true so a new account can be picked", url)
	}
	if !strings.Contains(url, "state=state123") {
		t.Errorf("LoginURL() = %q, missing state parameter", url)
	}
	if got := m.SnapshotView().State; got != "connecting" {
		t.Errorf("State after LoginURL = %q, want connecting", got)
	}
}

func TestAbortAuth(t *testing.T) {
	t.Run("resets an unfinished login", func(t *testing.T) {
		mux := http.NewServeMux()
		defaultAPI(mux)
		m := newTestManager(t, mux)

		m.LoginURL("s")
		m.AbortAuth()
		if got := m.SnapshotView().State; got != "disconnected" {
			t.Errorf("State = %q, want disconnected", got)
		}
	})

	t.Run("leaves a connected session alone", func(t *testing.T) {
		mux := http.NewServeMux()
		defaultAPI(mux)
		m := newTestManager(t, mux)
		connect(t, m, "fresh")

		m.AbortAuth()
		got := m.SnapshotView()
		if !got.Connected {
			t.Error("AbortAuth() tore down an established session")
		}
		if got.State != "connected_no_device" {
			t.Errorf("State = %q, want connected_no_device", got.State)
		}
	})
}
