package framework

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queuebot/audio"
	commands "queuebot/cmd"
)

type sentMessage struct {
	channel string
	content string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeMessenger) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sentMessage{channel: channelID, content: content})
	return &discordgo.Message{}, nil
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		prefix, content string
		name, arg       string
		ok              bool
	}{
		{"!", "!play https://youtu.be/x", "play", "https://youtu.be/x", true},
		{"!", "  !PING  ", "ping", "", true},
		{"!", "!loop   queue ", "loop", "queue", true},
		{"!", "play x", "", "", false},
		{"!", "!", "", "", false},
		{"?", "!play x", "", "", false},
		{"mb ", "mb skip", "skip", "", true},
	}
	for _, tt := range tests {
		name, arg, ok := parseCommand(tt.prefix, tt.content)
		assert.Equal(t, tt.ok, ok, tt.content)
		assert.Equal(t, tt.name, name, tt.content)
		assert.Equal(t, tt.arg, arg, tt.content)
	}
}

func newCommand(msgs *fakeMessenger) *commands.BotCommand {
	return &commands.BotCommand{
		Session: msgs,
		Message: &discordgo.MessageCreate{Message: &discordgo.Message{
			GuildID:   "g1",
			ChannelID: "text-1",
			Author:    &discordgo.User{ID: "u1"},
		}},
	}
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name, arg string
		want      string
	}{
		{"ping", "", "Pong!"},
		{"play", "", "Usage: !play <youtube_url>"},
		{"dance", "", "Unknown command. Type `!help` for available commands."},
		{"playtop", "zero", "Usage: !playtop <position>"},
	}
	for _, tt := range tests {
		msgs := &fakeMessenger{}
		dispatch(context.Background(), newCommand(msgs), "!", tt.name, tt.arg)

		require.Len(t, msgs.sent, 1, tt.name)
		assert.Equal(t, "text-1", msgs.sent[0].channel)
		assert.Equal(t, tt.want, msgs.sent[0].content, tt.name)
	}
}

func TestAnnouncer(t *testing.T) {
	msgs := &fakeMessenger{}
	a := NewAnnouncer(msgs, nil)

	track := &audio.Track{URL: "u", Title: "Song", Author: "Band", Duration: 185 * time.Second}

	// unknown channel
	a.Notify(audio.Notification{GuildID: "g1", Kind: audio.NotifyNowPlaying, Track: track})
	assert.Empty(t, msgs.sent)

	a.Remember("g1", "text-1")
	a.Notify(audio.Notification{GuildID: "g1", Kind: audio.NotifyNowPlaying, Track: track})
	a.Notify(audio.Notification{GuildID: "g1", Kind: audio.NotifyEnqueued, Message: "Added `Song` to the queue", Track: track})
	a.Notify(audio.Notification{GuildID: "g1", Kind: audio.NotifyFinished, Message: "Finished playing `Song`", Track: track})
	a.Notify(audio.Notification{GuildID: "g1", Kind: audio.NotifyQueueEmpty, Message: "No more songs to play, leaving."})

	require.Len(t, msgs.sent, 3)
	assert.Equal(t, sentMessage{"text-1", "🎶 Now playing `Song` by Band\nDuration: `03:05`"}, msgs.sent[0])
	assert.Equal(t, sentMessage{"text-1", "✅ Finished playing `Song`"}, msgs.sent[1])
	assert.Equal(t, sentMessage{"text-1", "👋 No more songs to play, leaving."}, msgs.sent[2])

	a.Remember("g1", "text-2")
	ch, ok := a.Channel("g1")
	assert.True(t, ok)
	assert.Equal(t, "text-2", ch)
}

func TestAnnouncer_SendErrorIsSwallowed(t *testing.T) {
	msgs := &fakeMessenger{err: errors.New("rate limited")}
	a := NewAnnouncer(msgs, nil)
	a.Remember("g1", "text-1")

	assert.NotPanics(t, func() {
		a.Notify(audio.Notification{GuildID: "g1", Kind: audio.NotifyPlayError, Message: "Could not play `x`"})
	})
}
