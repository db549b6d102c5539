package framework

import (
	"queuebot/audio"
	commands "queuebot/cmd"
)

// formatNotification renders n for chat. Enqueues are already answered by
// the command that caused them.
func formatNotification(n audio.Notification) (string, bool) {
	switch n.Kind {
	case audio.NotifyEnqueued:
		return "", false
	case audio.NotifyNowPlaying:
		if n.Track == nil {
			return "🎶 " + n.Message, true
		}
		msg := "🎶 Now playing `" + n.Track.Name() + "`"
		if n.Track.Author != "" {
			msg += " by " + n.Track.Author
		}
		if n.Track.Duration > 0 {
			msg += "\nDuration: `" + commands.FormatDuration(n.Track.Duration) + "`"
		}
		return msg, true
	case audio.NotifyFinished:
		return "✅ " + n.Message, true
	case audio.NotifyQueueEmpty:
		return "👋 " + n.Message, true
	case audio.NotifySourceError, audio.NotifyPlayError:
		return "⚠️ " + n.Message, true
	default:
		return n.Message, n.Message != ""
	}
}
