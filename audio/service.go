package audio

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Service is the entry point for commands and the status API. It resolves
// tracks, feeds the queues and starts playback chains that the Router then
// keeps going.
type Service struct {
	queues    *QueueManager
	router    *Router
	resolver  Resolver
	connector Connector
	log       *zap.Logger
}

func NewService(queues *QueueManager, router *Router, resolver Resolver, connector Connector, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		queues:    queues,
		router:    router,
		resolver:  resolver,
		connector: connector,
		log:       log,
	}
}

func (s *Service) Queues() *QueueManager {
	return s.queues
}

// Guilds lists the guilds that have a queue.
func (s *Service) Guilds() []string {
	return s.queues.Guilds()
}

// Tracks returns the guild's queue in play order.
func (s *Service) Tracks(guildID string) ([]TrackHandle, error) {
	q, ok := s.queues.Lookup(guildID)
	if !ok {
		return nil, ErrNotFound
	}
	return q.List(), nil
}

// Enqueue resolves locator and appends it to the guild's queue. When the
// guild was idle, playback of the head starts and started is true. The
// session is joined in channelID, or the guild's current session is used
// when channelID is empty.
//
// If the guild's session is being left, Enqueue waits for that and starts
// the head on a new session.
func (s *Service) Enqueue(ctx context.Context, guildID, channelID, locator string) (h TrackHandle, started bool, err error) {
	track, err := s.resolver.Resolve(ctx, locator)
	if err != nil {
		return TrackHandle{}, false, err
	}
	if track.URL == "" {
		track.URL = locator
	}

	q := s.queues.Get(guildID)
	h, head, start, gen, leaving := q.enqueue(track)
	if leaving != nil {
		s.log.Debug("waiting for voice session to be left", zap.String("guild", guildID))
		select {
		case <-leaving:
		case <-ctx.Done():
			return h, false, ctx.Err()
		}
		head, start, gen = q.restart()
	}
	s.log.Debug("track enqueued",
		zap.String("guild", guildID),
		zap.String("url", track.URL),
		zap.Bool("start", start))

	if !start {
		s.router.notify(guildID, NotifyEnqueued, fmt.Sprintf("Added `%s` to the queue", track.Name()), &track)
		return h, false, nil
	}

	sess, err := s.session(ctx, guildID, channelID)
	if err != nil {
		q.halt(gen)
		return h, false, err
	}
	req := PlayRequest{GuildID: guildID, Handle: head, Generation: gen}
	if err := s.router.start(ctx, q, sess, req); err != nil {
		return h, false, err
	}
	return h, true, nil
}

func (s *Service) session(ctx context.Context, guildID, channelID string) (Session, error) {
	if channelID == "" {
		sess, ok := s.connector.Session(guildID)
		if !ok {
			return nil, fmt.Errorf("voice session of guild %s: %w", guildID, ErrNotFound)
		}
		return sess, nil
	}
	sess, err := s.connector.Join(ctx, guildID, channelID)
	if err != nil {
		if errors.Is(err, ErrSessionError) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionError, err)
	}
	return sess, nil
}

// EnqueueFromLocator enqueues into a guild that already has a queue and a
// live voice session.
func (s *Service) EnqueueFromLocator(ctx context.Context, guildID, locator string) (TrackHandle, error) {
	if _, ok := s.queues.Lookup(guildID); !ok {
		return TrackHandle{}, fmt.Errorf("queue of guild %s: %w", guildID, ErrNotFound)
	}
	if _, ok := s.connector.Session(guildID); !ok {
		return TrackHandle{}, fmt.Errorf("voice session of guild %s: %w", guildID, ErrNotFound)
	}
	h, _, err := s.Enqueue(ctx, guildID, "", locator)
	return h, err
}

// Skip removes the current track and stops its stream. The router plays
// the next one when the stream's end event comes in.
func (s *Service) Skip(guildID string) (TrackHandle, error) {
	q, ok := s.queues.Lookup(guildID)
	if !ok {
		return TrackHandle{}, ErrNotPlaying
	}
	cur, ok := q.Current()
	if !ok {
		return TrackHandle{}, ErrNotPlaying
	}
	skipped, err := q.SkipTrack(cur.ID)
	if err != nil {
		return TrackHandle{}, err
	}
	if sess, ok := s.connector.Session(guildID); ok {
		sess.Stop(skipped.ID)
	}
	return skipped, nil
}

// Stop clears the queue and stops the stream but stays connected.
func (s *Service) Stop(guildID string) {
	q, ok := s.queues.Lookup(guildID)
	if !ok {
		return
	}
	cur, playing, _ := q.clear()
	if !playing {
		return
	}
	if sess, ok := s.connector.Session(guildID); ok {
		sess.Stop(cur.ID)
	}
}

// Leave clears the queue and disconnects.
func (s *Service) Leave(ctx context.Context, guildID string) error {
	s.Stop(guildID)

	sess, ok := s.connector.Session(guildID)
	if !ok {
		return nil
	}
	if err := sess.Leave(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionError, err)
	}
	return nil
}

// SetLoopMode changes the loop mode of the guild. Events already being
// handled keep the mode they started with.
func (s *Service) SetLoopMode(guildID string, m LoopMode) {
	s.queues.Get(guildID).SetLoopMode(m)
}
