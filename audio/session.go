package audio

import (
	"context"

	"github.com/google/uuid"
)

// PlayRequest asks a session to play one queued track. The session echoes
// it back in the TrackEnded event.
type PlayRequest struct {
	GuildID    string
	Handle     TrackHandle
	Generation uint64
}

// TrackEnded is delivered once for every Play that returned nil, after the
// stream stopped for any reason.
type TrackEnded struct {
	PlayRequest
	Session Session
	Err     error // stream failure; nil when it ran out or was stopped
}

// Session is a live voice connection of one guild.
type Session interface {
	// Play starts streaming req in the background.
	Play(ctx context.Context, req PlayRequest) error
	// Stop ends the stream of trackID if it is the one playing.
	Stop(trackID uuid.UUID) bool
	// Leave stops playback and disconnects.
	Leave(ctx context.Context) error
}

// Connector hands out sessions.
type Connector interface {
	Join(ctx context.Context, guildID, channelID string) (Session, error)
	Session(guildID string) (Session, bool)
}

// Resolver turns a user supplied locator into playable metadata.
type Resolver interface {
	Resolve(ctx context.Context, locator string) (Track, error)
}

type ResolverFunc func(ctx context.Context, locator string) (Track, error)

func (f ResolverFunc) Resolve(ctx context.Context, locator string) (Track, error) {
	return f(ctx, locator)
}
