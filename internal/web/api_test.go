package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/justestif/drift/internal/bridge"
	"github.com/justestif/drift/internal/idle"
	"github.com/justestif/drift/internal/prefs"
	"github.com/justestif/drift/internal/session"
	"github.com/justestif/drift/internal/spotify"
	"github.com/justestif/drift/internal/store"
	"github.com/justestif/drift/internal/timer"
	"github.com/justestif/drift/internal/todo"
)

var testTemplates = fstest.MapFS{
	"layouts/base.html": {Data: []byte(`{{define "base"}}<html><body>{{template "content" .}}</body></html>{{end}}`)},
	"pages/home.html":   {Data: []byte(`{{define "content"}}<main>{{.Title}} {{if .Authenticated}}in{{else}}out{{end}}</main>{{end}}`)},
}

func newTestServer(t *testing.T, opts ...spotify.Option) (*httptest.Server, *session.Manager) {
	t.Helper()

	fileStore := store.NewFileStore(t.TempDir())

	prefsMgr, err := prefs.NewManager(context.Background(), prefs.NewFileRepository(fileStore))
	if err != nil {
		t.Fatal(err)
	}
	todos, err := todo.NewStore(context.Background(), todo.NewFileRepository(fileStore))
	if err != nil {
		t.Fatal(err)
	}

	client := spotify.New(spotify.Config{ClientID: "id", ClientSecret: "secret", RedirectURI: "http://127.0.0.1/callback"}, opts...)
	sessionMgr := session.New(session.Config{
		Client:       client,
		Tokens:       session.NewFileTokenRepository(fileStore),
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURI:  "http://127.0.0.1/callback",
	})

	idleMon := idle.NewMonitor(0)
	t.Cleanup(idleMon.Stop)

	hub := bridge.NewHub(&nopEvents{})
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv, err := NewServer(ServerConfig{
		Addr:        "127.0.0.1:0",
		TemplatesFS: testTemplates,
		StaticFS:    fstest.MapFS{},
		Timer:       timer.New(1500, 300),
		Todos:       todos,
		Prefs:       prefsMgr,
		Session:     sessionMgr,
		Spotify:     client,
		Hub:         hub,
		Idle:        idleMon,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, sessionMgr
}

type nopEvents struct{}

func (nopEvents) DeviceReady(string)          {}
func (nopEvents) DeviceNotReady()             {}
func (nopEvents) PlayerState(json.RawMessage) {}
func (nopEvents) AccountError(string)         {}
func (nopEvents) PlaybackError(string)        {}
func (nopEvents) Activity()                   {}
func (nopEvents) FullscreenChanged(bool)      {}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	res, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestHomeRenders(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET / status = %d", res.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(res.Body); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("Drift out")) {
		t.Errorf("body = %q, want disconnected home page", buf.String())
	}
}

func TestTodoLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	res := postJSON(t, ts.URL+"/api/todos/", map[string]string{"text": "  water plants  "})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add status = %d", res.StatusCode)
	}
	var item todo.Item
	if err := json.NewDecoder(res.Body).Decode(&item); err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if item.Text != "water plants" {
		t.Errorf("Text = %q, want trimmed", item.Text)
	}

	res = postJSON(t, ts.URL+"/api/todos/"+item.ID+"/toggle", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("toggle status = %d", res.StatusCode)
	}
	res.Body.Close()

	res, err := http.Get(ts.URL + "/api/todos/")
	if err != nil {
		t.Fatal(err)
	}
	var lists struct {
		Pending   []todo.Item `json:"pending"`
		Completed []todo.Item `json:"completed"`
	}
	if err := json.NewDecoder(res.Body).Decode(&lists); err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if len(lists.Pending) != 0 || len(lists.Completed) != 1 {
		t.Errorf("pending = %d, completed = %d, want 0/1", len(lists.Pending), len(lists.Completed))
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/todos/"+item.ID, nil)
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", res.StatusCode)
	}
}

func TestTodoAddRejectsBlank(t *testing.T) {
	ts, _ := newTestServer(t)

	res := postJSON(t, ts.URL+"/api/todos/", map[string]string{"text": "   "})
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
}

func TestPrefsUpdateValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	bad := prefs.Defaults()
	bad.WorkSeconds = 10 // below the minimum
	res := func() *http.Response {
		data, _ := json.Marshal(bad)
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/prefs/", bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		r, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return r
	}()
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}

	// The record is unchanged after the rejection.
	got, err := http.Get(ts.URL + "/api/prefs/")
	if err != nil {
		t.Fatal(err)
	}
	defer got.Body.Close()
	var current prefs.Preferences
	if err := json.NewDecoder(got.Body).Decode(&current); err != nil {
		t.Fatal(err)
	}
	if current.WorkSeconds != prefs.Defaults().WorkSeconds {
		t.Errorf("WorkSeconds = %d, want default kept", current.WorkSeconds)
	}
}

func TestTimerToggleAndReset(t *testing.T) {
	ts, _ := newTestServer(t)

	res := postJSON(t, ts.URL+"/api/timer/toggle", nil)
	var state timer.State
	if err := json.NewDecoder(res.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if !state.Paused {
		t.Error("Paused = false after first toggle")
	}

	res = postJSON(t, ts.URL+"/api/timer/reset", nil)
	if err := json.NewDecoder(res.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if state.RemainingSeconds != 1500 {
		t.Errorf("RemainingSeconds = %d, want 1500", state.RemainingSeconds)
	}
}

func TestSpotifyEndpointsRequireConnection(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/api/spotify/token", "/api/spotify/playlists", "/api/spotify/now-playing"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, res.StatusCode)
		}
	}

	res := postJSON(t, ts.URL+"/api/spotify/toggle", nil)
	var result session.Result
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if result.Success || result.Error == "" {
		t.Errorf("result = %+v, want failure with message", result)
	}
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/callback?state=other&code=x", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "expected"})
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
}

func TestCallbackExchangeFailureResetsSession(t *testing.T) {
	accounts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	t.Cleanup(accounts.Close)

	ts, sessionMgr := newTestServer(t, spotify.WithBaseURLs(accounts.URL, accounts.URL))

	sessionMgr.LoginURL("s")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/callback?state=s&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "s"})
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", res.StatusCode)
	}
	if got := sessionMgr.SnapshotView().State; got != "disconnected" {
		t.Errorf("State after failed exchange = %q, want disconnected", got)
	}
}
