package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Action is a generic transport-control verb.
type Action string

// Supported transport actions.
const (
	ActionPlay     Action = "play"
	ActionPause    Action = "pause"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
)

// CurrentlyPlaying fetches the playback snapshot. A 204 means nothing is
// playing and yields (nil, nil).
func (c *Client) CurrentlyPlaying(ctx context.Context) (*NowPlaying, error) {
	var cp currentlyPlayingResponse
	resp, err := c.getJSON(ctx, "/me/player/currently-playing", &cp)
	if err != nil {
		return nil, err
	}

	switch resp.status {
	case http.StatusOK:
		return &NowPlaying{
			Track:      cp.Item.project(),
			ProgressMs: cp.ProgressMs,
			IsPlaying:  cp.IsPlaying,
		}, nil
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, statusError(resp.status, resp.body)
	}
}

// Control issues a generic transport command. play and pause are PUT,
// next and previous are POST, per the Web API.
func (c *Client) Control(ctx context.Context, action Action) error {
	method := http.MethodPut
	if action == ActionNext || action == ActionPrevious {
		method = http.MethodPost
	}

	resp, err := c.authedDo(ctx, method, "/me/player/"+string(action), nil)
	if err != nil {
		return err
	}
	if resp.status == http.StatusOK || resp.status == http.StatusNoContent {
		return nil
	}
	return statusError(resp.status, resp.body)
}

// Play starts playback of a context (playlist) on the given device. An
// empty deviceID targets the user's currently active device.
func (c *Client) Play(ctx context.Context, deviceID, contextURI string) error {
	path := "/me/player/play"
	if deviceID != "" {
		path += "?device_id=" + url.QueryEscape(deviceID)
	}

	body, err := json.Marshal(map[string]string{"context_uri": contextURI})
	if err != nil {
		return fmt.Errorf("encoding play request: %w", err)
	}

	resp, err := c.authedDo(ctx, http.MethodPut, path, body)
	if err != nil {
		return err
	}
	if resp.status == http.StatusOK || resp.status == http.StatusNoContent {
		return nil
	}
	return statusError(resp.status, resp.body)
}

// TransferPlayback moves playback to the given device.
func (c *Client) TransferPlayback(ctx context.Context, deviceID string) error {
	body, err := json.Marshal(map[string]any{
		"device_ids": []string{deviceID},
		"play":       true,
	})
	if err != nil {
		return fmt.Errorf("encoding transfer request: %w", err)
	}

	resp, err := c.authedDo(ctx, http.MethodPut, "/me/player", body)
	if err != nil {
		return err
	}
	if resp.status == http.StatusOK || resp.status == http.StatusNoContent {
		return nil
	}
	return statusError(resp.status, resp.body)
}

// Playlists lists the user's playlists (first page, up to 50).
func (c *Client) Playlists(ctx context.Context) ([]Playlist, error) {
	var pr playlistsResponse
	resp, err := c.getJSON(ctx, "/me/playlists?limit=50", &pr)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, statusError(resp.status, resp.body)
	}

	playlists := make([]Playlist, 0, len(pr.Items))
	for _, item := range pr.Items {
		p := Playlist{
			ID:         item.ID,
			Name:       item.Name,
			URI:        item.URI,
			TrackCount: item.Tracks.Total,
		}
		if len(item.Images) > 0 {
			p.ArtworkURL = item.Images[0].URL
		}
		playlists = append(playlists, p)
	}
	return playlists, nil
}

// CurrentUser fetches the connected account's profile.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var ur userResponse
	resp, err := c.getJSON(ctx, "/me", &ur)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, statusError(resp.status, resp.body)
	}
	return &User{ID: ur.ID, DisplayName: ur.DisplayName}, nil
}
