package audio

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapConnector struct {
	sessions map[string]Session
}

func (c *mapConnector) Join(_ context.Context, guildID, _ string) (Session, error) {
	sess, ok := c.sessions[guildID]
	if !ok {
		return nil, ErrSessionError
	}
	return sess, nil
}

func (c *mapConnector) Session(guildID string) (Session, bool) {
	sess, ok := c.sessions[guildID]
	return sess, ok
}

func newTestService(t *testing.T, resolver Resolver) (*Service, *recordingSession, *mapConnector) {
	t.Helper()
	if resolver == nil {
		resolver = ResolverFunc(func(_ context.Context, locator string) (Track, error) {
			return track(locator), nil
		})
	}
	queues := NewQueueManager()
	router := NewRouter(queues, resolver, nil, nil)
	sess := &recordingSession{}
	conn := &mapConnector{sessions: map[string]Session{"g1": sess}}
	return NewService(queues, router, resolver, conn, nil), sess, conn
}

func TestService_EnqueueStartsIdleGuild(t *testing.T) {
	svc, sess, _ := newTestService(t, nil)

	h, started, err := svc.Enqueue(context.Background(), "g1", "vc1", "a")
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, h.ID, sess.lastPlayed(t).Handle.ID)

	_, started, err = svc.Enqueue(context.Background(), "g1", "vc1", "b")
	require.NoError(t, err)
	assert.False(t, started)
	assert.Len(t, sess.played, 1)

	tracks, err := svc.Tracks("g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, urlsOf(tracks))
	assert.Equal(t, []string{"g1"}, svc.Guilds())
}

func TestService_EnqueueFillsMissingURL(t *testing.T) {
	svc, _, _ := newTestService(t, ResolverFunc(func(context.Context, string) (Track, error) {
		return Track{Title: "untitled"}, nil
	}))

	h, _, err := svc.Enqueue(context.Background(), "g1", "vc1", "https://example.com/x")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/x", h.Track.URL)
}

func TestService_EnqueueResolveErrorLeavesQueueAlone(t *testing.T) {
	svc, sess, _ := newTestService(t, ResolverFunc(func(_ context.Context, locator string) (Track, error) {
		return Track{}, &SourceError{Kind: SourceNotFound, Locator: locator}
	}))

	_, _, err := svc.Enqueue(context.Background(), "g1", "vc1", "missing")
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	_, err = svc.Tracks("g1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, sess.played)
}

func TestService_EnqueuePlayFailure(t *testing.T) {
	svc, sess, _ := newTestService(t, nil)
	sess.playErr = errors.New("not connected")

	_, started, err := svc.Enqueue(context.Background(), "g1", "vc1", "a")
	assert.ErrorIs(t, err, ErrSessionError)
	assert.False(t, started)

	// the track stays queued and the next enqueue tries again
	sess.playErr = nil
	_, started, err = svc.Enqueue(context.Background(), "g1", "vc1", "b")
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, "a", sess.lastPlayed(t).Handle.Track.URL)
}

func TestService_EnqueueWithoutSession(t *testing.T) {
	svc, sess, conn := newTestService(t, nil)
	delete(conn.sessions, "g1")

	_, started, err := svc.Enqueue(context.Background(), "g1", "", "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, started)

	_, started, err = svc.Enqueue(context.Background(), "g1", "vc1", "b")
	assert.ErrorIs(t, err, ErrSessionError, "join failed")
	assert.False(t, started)

	// both tracks stay queued and the chain starts once a session exists
	conn.sessions["g1"] = sess
	_, started, err = svc.Enqueue(context.Background(), "g1", "vc1", "c")
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, "a", sess.lastPlayed(t).Handle.Track.URL)

	tracks, err := svc.Tracks("g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, urlsOf(tracks))
}

func TestService_EnqueueFromLocator(t *testing.T) {
	svc, _, conn := newTestService(t, nil)

	_, err := svc.EnqueueFromLocator(context.Background(), "g1", "a")
	assert.ErrorIs(t, err, ErrNotFound, "no queue yet")

	_, _, err = svc.Enqueue(context.Background(), "g1", "vc1", "a")
	require.NoError(t, err)

	h, err := svc.EnqueueFromLocator(context.Background(), "g1", "b")
	require.NoError(t, err)
	assert.Equal(t, "b", h.Track.URL)

	delete(conn.sessions, "g1")
	_, err = svc.EnqueueFromLocator(context.Background(), "g1", "c")
	assert.ErrorIs(t, err, ErrNotFound, "no voice session")
}

func TestService_Skip(t *testing.T) {
	svc, sess, _ := newTestService(t, nil)

	_, err := svc.Skip("g1")
	assert.ErrorIs(t, err, ErrNotPlaying)

	first, _, err := svc.Enqueue(context.Background(), "g1", "vc1", "a")
	require.NoError(t, err)
	_, _, err = svc.Enqueue(context.Background(), "g1", "vc1", "b")
	require.NoError(t, err)

	skipped, err := svc.Skip("g1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, skipped.ID)
	assert.Equal(t, []uuid.UUID{first.ID}, sess.stopped)

	tracks, err := svc.Tracks("g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, urlsOf(tracks))
}

func TestService_Stop(t *testing.T) {
	svc, sess, _ := newTestService(t, nil)
	svc.Stop("g1") // no queue

	first, _, err := svc.Enqueue(context.Background(), "g1", "vc1", "a")
	require.NoError(t, err)
	_, _, err = svc.Enqueue(context.Background(), "g1", "vc1", "b")
	require.NoError(t, err)
	svc.SetLoopMode("g1", LoopQueue)

	svc.Stop("g1")

	tracks, err := svc.Tracks("g1")
	require.NoError(t, err)
	assert.Empty(t, tracks)
	assert.Equal(t, []uuid.UUID{first.ID}, sess.stopped)
	assert.Equal(t, LoopQueue, svc.Queues().Get("g1").LoopMode())
	assert.Zero(t, sess.leaveCount())

	// the stopped track's end event belongs to the old generation
	ev := TrackEnded{PlayRequest: sess.lastPlayed(t), Session: sess}
	assert.Equal(t, OutcomeIgnored, svc.router.HandleTrackEnd(context.Background(), ev))
}

func TestService_Leave(t *testing.T) {
	svc, sess, conn := newTestService(t, nil)

	_, _, err := svc.Enqueue(context.Background(), "g1", "vc1", "a")
	require.NoError(t, err)

	require.NoError(t, svc.Leave(context.Background(), "g1"))
	assert.Equal(t, 1, sess.leaveCount())
	assert.True(t, svc.Queues().Get("g1").IsEmpty())

	delete(conn.sessions, "g1")
	assert.NoError(t, svc.Leave(context.Background(), "g1"))
}

func TestService_SetLoopModeCreatesQueue(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	svc.SetLoopMode("g2", LoopTrack)

	q, ok := svc.Queues().Lookup("g2")
	require.True(t, ok)
	assert.Equal(t, LoopTrack, q.LoopMode())
}
