package audio

import "time"

type NotificationKind string

const (
	NotifyEnqueued    NotificationKind = "enqueued"
	NotifyNowPlaying  NotificationKind = "now_playing"
	NotifyFinished    NotificationKind = "finished"
	NotifyQueueEmpty  NotificationKind = "queue_empty"
	NotifySourceError NotificationKind = "source_error"
	NotifyPlayError   NotificationKind = "play_error"
)

// Notification is a presentation event. Formatting is up to the receiver.
type Notification struct {
	GuildID string           `json:"guild_id"`
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
	Track   *Track           `json:"track,omitempty"`
	At      time.Time        `json:"at"`
}

// Notifier receives notifications. Implementations must not block for long
// and report their own failures.
type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Notifiers fans a notification out in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(n Notification) {
	for _, nt := range ns {
		if nt != nil {
			nt.Notify(n)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}
