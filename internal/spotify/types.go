package spotify

// Track is the read-only projection of a remote track. Snapshots are always
// overwritten wholesale on fetch, never merged field-by-field.
type Track struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	DurationMs int      `json:"durationMs"`
	ArtworkURL string   `json:"artworkUrl,omitempty"`
}

// NowPlaying is the current playback snapshot. A nil Track means nothing is
// playing.
type NowPlaying struct {
	Track      *Track `json:"track"`
	ProgressMs int    `json:"progressMs"`
	IsPlaying  bool   `json:"isPlaying"`
}

// Playlist is the read-only projection of a remote playlist.
type Playlist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URI        string `json:"uri"`
	TrackCount int    `json:"trackCount"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
}

// User is the remote profile of the connected account.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Wire formats below mirror the Web API responses.

type trackObject struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	DurationMs int `json:"duration_ms"`
}

func (t *trackObject) project() *Track {
	if t == nil || t.ID == "" {
		return nil
	}
	track := &Track{
		ID:         t.ID,
		Title:      t.Name,
		DurationMs: t.DurationMs,
	}
	for _, a := range t.Artists {
		track.Artists = append(track.Artists, a.Name)
	}
	if len(t.Album.Images) > 0 {
		track.ArtworkURL = t.Album.Images[0].URL
	}
	return track
}

type currentlyPlayingResponse struct {
	Item       *trackObject `json:"item"`
	ProgressMs int          `json:"progress_ms"`
	IsPlaying  bool         `json:"is_playing"`
}

type playlistsResponse struct {
	Items []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		URI    string `json:"uri"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
		Tracks struct {
			Total int `json:"total"`
		} `json:"tracks"`
	} `json:"items"`
}

type userResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}
