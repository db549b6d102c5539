package api

import "queuebot/audio"

const authorIconURL = "https://raw.githubusercontent.com/Giftzwerg02/oxo/19bdb259f38a0fde3231e9957019b889e5d3280c/resources/music.png"

// Track is the API view of a queued track. It carries no playback
// position; live progress goes over the websocket.
type Track struct {
	Title      *string `json:"title"`
	Author     Author  `json:"author"`
	Thumbnail  *string `json:"thumbnail"`
	LengthSecs *uint64 `json:"length_secs"`
	URL        *string `json:"url"`
}

type Author struct {
	Name    *string `json:"name"`
	IconURL *string `json:"icon_url"`
}

type addSongRequest struct {
	TrackURL string `json:"track_url"`
}

// NewTrack maps t, leaving unknown fields null.
func NewTrack(t audio.Track) Track {
	icon := authorIconURL
	out := Track{
		Title:     optional(t.Title),
		Thumbnail: optional(t.Thumbnail),
		URL:       optional(t.URL),
		Author: Author{
			Name:    optional(t.Author),
			IconURL: &icon,
		},
	}
	if t.Duration > 0 {
		secs := uint64(t.Duration.Seconds())
		out.LengthSecs = &secs
	}
	return out
}

func NewTracks(hs []audio.TrackHandle) []Track {
	out := make([]Track, 0, len(hs))
	for _, h := range hs {
		out = append(out, NewTrack(h.Track))
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
