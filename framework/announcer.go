package framework

import (
	"sync"

	"go.uber.org/zap"

	"queuebot/audio"
	commands "queuebot/cmd"
)

// Announcer posts player notifications to the text channel where the guild
// last issued a command.
type Announcer struct {
	session commands.Messenger
	log     *zap.Logger

	mu       sync.RWMutex
	channels map[string]string // guildID → text channel
}

func NewAnnouncer(s commands.Messenger, log *zap.Logger) *Announcer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Announcer{
		session:  s,
		log:      log,
		channels: make(map[string]string),
	}
}

func (a *Announcer) Remember(guildID, channelID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channels[guildID] = channelID
}

func (a *Announcer) Channel(guildID string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ch, ok := a.channels[guildID]
	return ch, ok
}

func (a *Announcer) Notify(n audio.Notification) {
	msg, ok := formatNotification(n)
	if !ok {
		return
	}
	ch, ok := a.Channel(n.GuildID)
	if !ok {
		return
	}
	if _, err := a.session.ChannelMessageSend(ch, msg); err != nil {
		a.log.Warn("posting notification",
			zap.String("guild", n.GuildID),
			zap.String("kind", string(n.Kind)),
			zap.Error(err))
	}
}
