package audio

import (
	"time"

	"github.com/google/uuid"
)

// Track is the metadata of one playable item. Empty fields mean the
// resolver had nothing for them.
type Track struct {
	URL       string        `json:"url"`
	Title     string        `json:"title,omitempty"`
	Author    string        `json:"author,omitempty"`
	Thumbnail string        `json:"thumbnail,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// Name returns the title, falling back to the URL.
func (t Track) Name() string {
	if t.Title != "" {
		return t.Title
	}
	return t.URL
}

// TrackHandle is one queued occurrence of a Track. Two handles of the same
// Track are different entries; compare IDs, not values.
type TrackHandle struct {
	ID    uuid.UUID `json:"id"`
	Track Track     `json:"track"`
}

func NewTrackHandle(t Track) TrackHandle {
	return TrackHandle{ID: uuid.New(), Track: t}
}
