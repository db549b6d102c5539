package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"queuebot/audio"
)

// Messenger is the part of *discordgo.Session the commands reply with.
type Messenger interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// LoopStore persists loop mode changes.
type LoopStore interface {
	SaveLoopMode(ctx context.Context, guildID string, mode audio.LoopMode) error
}

type BotCommand struct {
	Session  Messenger
	Message  *discordgo.MessageCreate
	Voice    audio.Connector
	Player   *audio.Service
	Settings LoopStore // may be nil
	Log      *zap.Logger

	// VoiceChannelID is the voice channel of the author, "" when they are
	// not in one.
	VoiceChannelID string
}

func (cmd *BotCommand) reply(msg string) {
	if _, err := cmd.Session.ChannelMessageSend(cmd.Message.ChannelID, msg); err != nil {
		cmd.logger().Warn("sending reply", zap.String("channel", cmd.Message.ChannelID), zap.Error(err))
	}
}

func (cmd *BotCommand) logger() *zap.Logger {
	if cmd.Log == nil {
		return zap.NewNop()
	}
	return cmd.Log.With(zap.String("guild", cmd.Message.GuildID))
}

func (cmd *BotCommand) queue() (*audio.Queue, bool) {
	return cmd.Player.Queues().Lookup(cmd.Message.GuildID)
}

func (cmd *BotCommand) join(ctx context.Context) (audio.Session, bool) {
	if cmd.VoiceChannelID == "" {
		cmd.reply("You must be in a voice channel.")
		return nil, false
	}
	sess, err := cmd.Voice.Join(ctx, cmd.Message.GuildID, cmd.VoiceChannelID)
	if err != nil {
		cmd.logger().Warn("joining voice channel", zap.String("channel", cmd.VoiceChannelID), zap.Error(err))
		cmd.reply("Failed to join VC: " + err.Error())
		return nil, false
	}
	return sess, true
}

func (cmd *BotCommand) Join(ctx context.Context) {
	if _, ok := cmd.join(ctx); ok {
		cmd.reply("Joined your voice channel.")
	}
}

func (cmd *BotCommand) Leave(ctx context.Context) {
	if err := cmd.Player.Leave(ctx, cmd.Message.GuildID); err != nil {
		cmd.reply("⚠️ Failed to leave VC: " + err.Error())
		return
	}
	cmd.reply("👋 Disconnected from voice channel.")
}

func (cmd *BotCommand) Play(ctx context.Context, url string) {
	if _, ok := cmd.Voice.Session(cmd.Message.GuildID); !ok {
		if _, ok := cmd.join(ctx); !ok {
			return
		}
	}

	h, started, err := cmd.Player.Enqueue(ctx, cmd.Message.GuildID, cmd.VoiceChannelID, url)
	switch {
	case errors.Is(err, audio.ErrSourceUnavailable):
		cmd.reply("❌ Could not load track: " + err.Error())
	case err != nil:
		cmd.reply("⚠️ Error playing track: " + err.Error())
	case started:
		// the router announces it
	default:
		cmd.reply("✅ Added to queue: " + describe(h.Track))
	}
}

func (cmd *BotCommand) Lofi(ctx context.Context, name string) {
	preset, ok := audio.LookupPreset(name)
	if !ok {
		names := make([]string, 0)
		for _, p := range audio.Presets() {
			names = append(names, "`"+p.Name+"`")
		}
		cmd.reply("❌ Unknown preset. Available: " + strings.Join(names, ", "))
		return
	}
	cmd.Play(ctx, preset.URL)
}

func (cmd *BotCommand) Stop() {
	cmd.Player.Stop(cmd.Message.GuildID)
	cmd.reply("⏹️ Stopped playback and cleared the queue.")
}

func (cmd *BotCommand) Skip() {
	skipped, err := cmd.Player.Skip(cmd.Message.GuildID)
	switch {
	case errors.Is(err, audio.ErrNotPlaying):
		cmd.reply("❌ Nothing is currently playing.")
	case errors.Is(err, audio.ErrStaleTrack):
		cmd.reply("⏭️ That track already ended.")
	case err != nil:
		cmd.reply("⚠️ Failed to skip: " + err.Error())
	default:
		cmd.reply("⏭️ Skipped " + describe(skipped.Track) + ".")
	}
}

func (cmd *BotCommand) Queue() {
	tracks, err := cmd.Player.Tracks(cmd.Message.GuildID)
	if err != nil || len(tracks) == 0 {
		cmd.reply("📭 Nothing is currently playing.\n🕳️ The queue is empty.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎶 Now Playing: %s\n", describe(tracks[0].Track))
	if q, ok := cmd.queue(); ok && q.LoopMode() != audio.LoopOff {
		fmt.Fprintf(&b, "🔁 Loop: %s\n", q.LoopMode())
	}
	if len(tracks) == 1 {
		b.WriteString("🕳️ The queue is empty.")
	} else {
		fmt.Fprintf(&b, "🎼 Upcoming Queue (%d):\n", len(tracks)-1)
		for i, t := range tracks[1:] {
			fmt.Fprintf(&b, "%d. %s\n", i+2, describe(t.Track))
		}
	}
	cmd.reply(b.String())
}

func (cmd *BotCommand) NowPlaying() {
	q, ok := cmd.queue()
	if !ok {
		cmd.reply("❌ Nothing is playing.")
		return
	}
	cur, ok := q.Current()
	if !ok {
		cmd.reply("❌ Nothing is playing.")
		return
	}
	msg := "🎶 Now Playing: " + describe(cur.Track)
	if q.Paused() {
		msg += " (paused)"
	}
	cmd.reply(msg)
}

func (cmd *BotCommand) Pause() {
	q, ok := cmd.queue()
	if !ok {
		cmd.reply("❌ Nothing is playing.")
		return
	}
	if q.Paused() {
		cmd.reply("⏸️ Already paused.")
		return
	}
	if err := q.Pause(); err != nil {
		cmd.reply("❌ Nothing is playing.")
		return
	}
	cmd.reply("⏸️ Paused playback.")
}

func (cmd *BotCommand) Resume() {
	q, ok := cmd.queue()
	if !ok {
		cmd.reply("❌ Nothing is playing.")
		return
	}
	if !q.Paused() {
		cmd.reply("▶️ Already playing.")
		return
	}
	if err := q.Resume(); err != nil {
		cmd.reply("❌ Nothing is playing.")
		return
	}
	cmd.reply("▶️ Resumed playback.")
}
