package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/justestif/drift/internal/logger"
	"github.com/justestif/drift/internal/prefs"
	"github.com/justestif/drift/internal/session"
	"github.com/justestif/drift/internal/spotify"
	"github.com/justestif/drift/internal/timer"
	"github.com/justestif/drift/internal/todo"
)

// todosPayload groups the task list by completion for the page.
type todosPayload struct {
	Pending   []todo.Item `json:"pending"`
	Completed []todo.Item `json:"completed"`
}

// controlsPayload mirrors the idle monitor for the page.
type controlsPayload struct {
	Visible    bool `json:"visible"`
	Fullscreen bool `json:"fullscreen"`
}

// fullState is the combined snapshot served on page load.
type fullState struct {
	Timer    timer.State       `json:"timer"`
	Session  session.Snapshot  `json:"session"`
	Prefs    prefs.Preferences `json:"prefs"`
	Todos    todosPayload      `json:"todos"`
	Controls controlsPayload   `json:"controls"`
}

// FullState serves the combined snapshot (GET /api/state).
func (h *Handlers) FullState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, fullState{
		Timer:   h.timer.Snapshot(),
		Session: h.session.SnapshotView(),
		Prefs:   h.prefs.Get(),
		Todos: todosPayload{
			Pending:   h.todos.Pending(),
			Completed: h.todos.Completed(),
		},
		Controls: controlsPayload{
			Visible:    h.idle.Visible(),
			Fullscreen: h.idle.Fullscreen(),
		},
	})
}

// TimerGet serves the current timer snapshot (GET /api/timer).
func (h *Handlers) TimerGet(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.timer.Snapshot())
}

// TimerToggle flips the pause flag (POST /api/timer/toggle).
func (h *Handlers) TimerToggle(w http.ResponseWriter, r *http.Request) {
	h.timer.TogglePause()
	respondJSON(w, http.StatusOK, h.timer.Snapshot())
}

// TimerReset restores the current phase's full duration (POST /api/timer/reset).
func (h *Handlers) TimerReset(w http.ResponseWriter, r *http.Request) {
	h.timer.Reset()
	respondJSON(w, http.StatusOK, h.timer.Snapshot())
}

// TodosList serves the task list (GET /api/todos).
func (h *Handlers) TodosList(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, todosPayload{
		Pending:   h.todos.Pending(),
		Completed: h.todos.Completed(),
	})
}

// TodoAdd appends a task (POST /api/todos).
func (h *Handlers) TodoAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.todos.Add(r.Context(), body.Text)
	if errors.Is(err, todo.ErrEmptyText) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		logger.Error("adding todo", logger.ErrField(err))
		respondError(w, http.StatusInternalServerError, "failed to save")
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// TodoToggle flips a task's completed flag (POST /api/todos/{id}/toggle).
func (h *Handlers) TodoToggle(w http.ResponseWriter, r *http.Request) {
	item, err := h.todos.Toggle(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, todo.ErrNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		logger.Error("toggling todo", logger.ErrField(err))
		respondError(w, http.StatusInternalServerError, "failed to save")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// TodoDelete removes a task (DELETE /api/todos/{id}).
func (h *Handlers) TodoDelete(w http.ResponseWriter, r *http.Request) {
	err := h.todos.Remove(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, todo.ErrNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		logger.Error("removing todo", logger.ErrField(err))
		respondError(w, http.StatusInternalServerError, "failed to save")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PrefsGet serves the preference record (GET /api/prefs).
func (h *Handlers) PrefsGet(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.prefs.Get())
}

// PrefsUpdate replaces the preference record (PUT /api/prefs). A record that
// fails validation is rejected wholesale; accepted duration changes rebase
// the running timer.
func (h *Handlers) PrefsUpdate(w http.ResponseWriter, r *http.Request) {
	var record prefs.Preferences
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.prefs.Update(r.Context(), record)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.timer.SetDurations(updated.WorkSeconds, updated.BreakSeconds); err != nil {
		logger.Warn("applying timer durations", logger.ErrField(err))
	}
	respondJSON(w, http.StatusOK, updated)
}

// SpotifyToken hands the playback SDK its token (GET /api/spotify/token).
func (h *Handlers) SpotifyToken(w http.ResponseWriter, r *http.Request) {
	token, expiry, err := h.session.ClientToken(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "not connected")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"accessToken": token,
		"expiresAt":   expiry.Format(time.RFC3339),
	})
}

// SpotifyNowPlaying serves the cached playback snapshot
// (GET /api/spotify/now-playing). A null body means nothing is playing.
func (h *Handlers) SpotifyNowPlaying(w http.ResponseWriter, r *http.Request) {
	snap := h.session.SnapshotView()
	if !snap.Connected {
		respondError(w, http.StatusUnauthorized, "not connected")
		return
	}
	respondJSON(w, http.StatusOK, snap.NowPlaying)
}

// SpotifyPlaylists serves the cached playlist snapshot (GET /api/spotify/playlists).
func (h *Handlers) SpotifyPlaylists(w http.ResponseWriter, r *http.Request) {
	snap := h.session.SnapshotView()
	if !snap.Connected {
		respondError(w, http.StatusUnauthorized, "not connected")
		return
	}
	playlists := snap.Playlists
	if playlists == nil {
		playlists = []spotify.Playlist{}
	}
	respondJSON(w, http.StatusOK, playlists)
}

// SpotifyPlaylistsRefresh re-fetches the playlist snapshot
// (POST /api/spotify/playlists/refresh).
func (h *Handlers) SpotifyPlaylistsRefresh(w http.ResponseWriter, r *http.Request) {
	respondResult(w, h.session.RefreshPlaylists(r.Context()))
}

// SpotifyPlay starts a playlist (POST /api/spotify/play).
func (h *Handlers) SpotifyPlay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URI string `json:"uri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URI == "" {
		respondError(w, http.StatusBadRequest, "missing playlist uri")
		return
	}
	respondResult(w, h.session.StartPlaylist(r.Context(), body.URI))
}

// SpotifyToggle toggles play/pause (POST /api/spotify/toggle).
func (h *Handlers) SpotifyToggle(w http.ResponseWriter, r *http.Request) {
	respondResult(w, h.session.TogglePlayPause(r.Context()))
}

// SpotifySkip skips to the next or previous track (POST /api/spotify/skip).
func (h *Handlers) SpotifySkip(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	respondResult(w, h.session.SkipTrack(r.Context(), body.Direction))
}

// SpotifyTransfer moves playback to the in-browser device
// (POST /api/spotify/transfer).
func (h *Handlers) SpotifyTransfer(w http.ResponseWriter, r *http.Request) {
	respondResult(w, h.session.TransferPlayback(r.Context()))
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encoding response", logger.ErrField(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondResult writes a playback command outcome. Failed commands keep the
// 200 status; the body's success flag and message drive the page.
func respondResult(w http.ResponseWriter, result session.Result) {
	respondJSON(w, http.StatusOK, result)
}
