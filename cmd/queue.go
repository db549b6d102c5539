package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"queuebot/audio"
)

const HelpMessage = "Available commands:\n" +
	"`!join` - Join your voice channel\n" +
	"`!leave` - Clear the queue and disconnect\n" +
	"`!play <url>` - Queue a track\n" +
	"`!lofi [preset]` - Queue a preset stream\n" +
	"`!skip` - Skip the current track\n" +
	"`!stop` - Stop and clear the queue\n" +
	"`!pause` / `!resume` - Pause or resume playback\n" +
	"`!queue` - Show the queue\n" +
	"`!nowplaying` - Show the current track\n" +
	"`!loop <off|track|queue>` - Set the loop mode\n" +
	"`!playtop <n>` - Play the track at position n next\n" +
	"`!remove <n>` - Remove the track at position n\n" +
	"`!shuffle` - Shuffle the upcoming tracks\n" +
	"`!ping` - Responds with Pong!\n" +
	"`!help` - Displays this help message"

func (cmd *BotCommand) Ping() {
	cmd.reply("Pong!")
}

func (cmd *BotCommand) Help(prefix string) {
	cmd.reply(strings.ReplaceAll(HelpMessage, "`!", "`"+prefix))
}

// Loop shows the loop mode, or sets it when arg is given.
func (cmd *BotCommand) Loop(ctx context.Context, arg string) {
	guildID := cmd.Message.GuildID
	if strings.TrimSpace(arg) == "" {
		mode := audio.LoopOff
		if q, ok := cmd.queue(); ok {
			mode = q.LoopMode()
		}
		cmd.reply(fmt.Sprintf("🔁 Loop mode is `%s`.", mode))
		return
	}

	mode, err := audio.ParseLoopMode(arg)
	if err != nil {
		cmd.reply("Usage: !loop <off|track|queue>")
		return
	}
	cmd.Player.SetLoopMode(guildID, mode)
	if cmd.Settings != nil {
		if err := cmd.Settings.SaveLoopMode(ctx, guildID, mode); err != nil {
			cmd.logger().Warn("saving loop mode", zap.Stringer("loop", mode), zap.Error(err))
		}
	}
	cmd.reply(fmt.Sprintf("🔁 Set loop mode to `%s`.", mode))
}

// PlayTop makes the track at the 1-based listing position the next one.
func (cmd *BotCommand) PlayTop(arg string) {
	n, ok := parsePosition(arg)
	if !ok {
		cmd.reply("Usage: !playtop <position>")
		return
	}
	q, ok := cmd.queue()
	if !ok || q.IsEmpty() {
		cmd.reply("❌ Nothing is playing.")
		return
	}
	if n == 1 {
		cmd.reply("❌ That track is already playing.")
		return
	}
	if err := q.MoveToFront(n - 1); err != nil {
		if errors.Is(err, audio.ErrIndexOutOfRange) {
			cmd.reply(fmt.Sprintf("❌ There is no track at position %d.", n))
			return
		}
		cmd.reply("⚠️ Failed to move track: " + err.Error())
		return
	}

	tracks := q.List()
	if len(tracks) < 2 {
		cmd.reply("⏫ Moved track to the top of the queue.")
		return
	}
	cmd.reply("⏫ Up next: " + describe(tracks[1].Track))
}

func (cmd *BotCommand) Remove(arg string) {
	n, ok := parsePosition(arg)
	if !ok {
		cmd.reply("Usage: !remove <position>")
		return
	}
	if n == 1 {
		cmd.reply("❌ Use !skip to remove the current track.")
		return
	}
	q, ok := cmd.queue()
	if !ok {
		cmd.reply("❌ Nothing is playing.")
		return
	}
	removed, err := q.Remove(n - 1)
	if err != nil {
		cmd.reply(fmt.Sprintf("❌ There is no track at position %d.", n))
		return
	}
	cmd.reply("🗑️ Removed " + describe(removed.Track) + ".")
}

func (cmd *BotCommand) Shuffle() {
	q, ok := cmd.queue()
	if !ok || q.IsEmpty() {
		cmd.reply("❌ Nothing is playing.")
		return
	}
	q.ShuffleRemainder()
	cmd.reply("🔀 Shuffled the queue.")
}
