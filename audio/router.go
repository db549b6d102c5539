package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const eventBufferSize = 64

// Outcome is what the router did with one TrackEnded event.
type Outcome int

const (
	OutcomeIgnored  Outcome = iota // unknown guild or reset session
	OutcomeStale                   // track was no longer current, queue untouched
	OutcomeAdvanced                // finished track dropped
	OutcomeRepeated                // fresh copy put back at the front
	OutcomeRotated                 // fresh copy moved to the back
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStale:
		return "stale"
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeRepeated:
		return "repeated"
	case OutcomeRotated:
		return "rotated"
	default:
		return "ignored"
	}
}

// Router handles track-end events: it applies the guild's loop mode to the
// queue, then either plays the new head or leaves the voice session.
//
// Playback of a guild is a chain: every Play yields one TrackEnded, and
// every handled TrackEnded issues at most one Play.
type Router struct {
	queues   *QueueManager
	resolver Resolver
	notifier Notifier
	log      *zap.Logger

	events chan TrackEnded
	wg     sync.WaitGroup
}

func NewRouter(queues *QueueManager, resolver Resolver, notifier Notifier, log *zap.Logger) *Router {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		queues:   queues,
		resolver: resolver,
		notifier: notifier,
		log:      log,
		events:   make(chan TrackEnded, eventBufferSize),
	}
}

// Events is where sessions deliver TrackEnded.
func (r *Router) Events() chan<- TrackEnded {
	return r.events
}

// Run handles events until ctx is done, each in its own goroutine, and
// waits for those still running before returning.
func (r *Router) Run(ctx context.Context) {
	defer r.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.HandleTrackEnd(ctx, ev)
			}()
		}
	}
}

// HandleTrackEnd processes the end of ev.Handle.
func (r *Router) HandleTrackEnd(ctx context.Context, ev TrackEnded) Outcome {
	log := r.log.With(
		zap.String("guild", ev.GuildID),
		zap.String("track", ev.Handle.ID.String()),
		zap.Uint64("generation", ev.Generation),
	)

	q, ok := r.queues.Lookup(ev.GuildID)
	if !ok {
		log.Debug("track ended for unknown guild")
		return OutcomeIgnored
	}

	mode, current, live := q.inspect(ev.Handle.ID, ev.Generation)
	if !live {
		log.Debug("track ended for a reset session")
		return OutcomeIgnored
	}
	if ev.Err != nil {
		log.Warn("stream failed", zap.Error(ev.Err))
	}

	track := ev.Handle.Track
	r.notify(ev.GuildID, NotifyFinished, fmt.Sprintf("Finished playing `%s`", track.Name()), &track)

	outcome := OutcomeStale
	if current {
		outcome = r.apply(ctx, q, ev, mode, log)
	}
	log.Debug("track end handled", zap.Stringer("loop", mode), zap.Stringer("outcome", outcome))

	r.settle(ctx, q, ev, log)
	return outcome
}

func (r *Router) apply(ctx context.Context, q *Queue, ev TrackEnded, mode LoopMode, log *zap.Logger) Outcome {
	// A track whose stream failed is not looped, or a broken source would
	// be retried forever.
	if mode != LoopOff && ev.Err == nil {
		fresh, err := r.resolver.Resolve(ctx, ev.Handle.Track.URL)
		if err == nil {
			if fresh.URL == "" {
				fresh.URL = ev.Handle.Track.URL
			}
			if mode == LoopTrack {
				_, err = q.RequeueCurrentFront(ev.Handle.ID, ev.Generation, fresh)
				if err != nil {
					return OutcomeStale
				}
				return OutcomeRepeated
			}
			_, err = q.RotateCurrentToBack(ev.Handle.ID, ev.Generation, fresh)
			if err != nil {
				return OutcomeStale
			}
			return OutcomeRotated
		}

		log.Warn("re-acquiring source failed, dropping track", zap.Stringer("loop", mode), zap.Error(err))
		track := ev.Handle.Track
		r.notify(ev.GuildID, NotifySourceError, fmt.Sprintf("Could not reload `%s`, skipping it", track.Name()), &track)
	}

	if _, err := q.Drop(ev.Handle.ID, ev.Generation); err != nil {
		return OutcomeStale
	}
	return OutcomeAdvanced
}

func (r *Router) settle(ctx context.Context, q *Queue, ev TrackEnded, log *zap.Logger) {
	next, play, leave := q.settle(ev.Generation)
	switch {
	case leave:
		// enqueues wait on q until the session is gone, then start over
		if ev.Session != nil {
			if err := ev.Session.Leave(ctx); err != nil {
				log.Warn("leaving voice session failed", zap.Error(err))
			}
		}
		q.left()
		r.notify(ev.GuildID, NotifyQueueEmpty, "No more songs to play, leaving.", nil)
	case play:
		r.start(ctx, q, ev.Session, PlayRequest{
			GuildID:    ev.GuildID,
			Handle:     next,
			Generation: ev.Generation,
		})
	}
}

// start issues the Play that continues the chain of req.Generation. When it
// fails the chain is marked broken so the next enqueue restarts it.
func (r *Router) start(ctx context.Context, q *Queue, sess Session, req PlayRequest) error {
	err := ErrSessionError
	if sess != nil {
		err = sess.Play(ctx, req)
	}
	if err != nil {
		q.halt(req.Generation)
		r.log.Warn("starting playback failed",
			zap.String("guild", req.GuildID),
			zap.String("url", req.Handle.Track.URL),
			zap.Error(err))
		track := req.Handle.Track
		r.notify(req.GuildID, NotifyPlayError, fmt.Sprintf("Could not play `%s`", track.Name()), &track)
		if !errors.Is(err, ErrSessionError) {
			err = fmt.Errorf("%w: %v", ErrSessionError, err)
		}
		return err
	}

	// a Reset between settle and Play did not see this stream
	if q.Generation() != req.Generation {
		sess.Stop(req.Handle.ID)
		r.log.Debug("stopped stream of a reset queue", zap.String("guild", req.GuildID))
		return nil
	}

	track := req.Handle.Track
	r.notify(req.GuildID, NotifyNowPlaying, fmt.Sprintf("Now playing `%s`", track.Name()), &track)
	return nil
}

func (r *Router) notify(guildID string, kind NotificationKind, msg string, t *Track) {
	r.notifier.Notify(Notification{
		GuildID: guildID,
		Kind:    kind,
		Message: msg,
		Track:   t,
		At:      time.Now().UTC(),
	})
}
