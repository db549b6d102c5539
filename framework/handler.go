package framework

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	commands "queuebot/cmd"
)

const commandTimeout = 2 * time.Minute

// parseCommand splits "!play https://..." into ("play", "https://...").
func parseCommand(prefix, content string) (name, arg string, ok bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	content = strings.TrimPrefix(content, prefix)
	name, arg, _ = strings.Cut(content, " ")
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(arg), true
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	if m.GuildID == "" {
		return
	}
	name, arg, ok := parseCommand(b.prefix, m.Content)
	if !ok {
		return
	}

	if b.announcer != nil {
		b.announcer.Remember(m.GuildID, m.ChannelID)
	}
	cmd := &commands.BotCommand{
		Session:        s,
		Message:        m,
		Voice:          b.voice,
		Player:         b.player,
		Settings:       b.settings,
		Log:            b.log,
		VoiceChannelID: commands.UserVoiceChannel(s.State, m.GuildID, m.Author.ID),
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	b.log.Debug("command",
		zap.String("guild", m.GuildID),
		zap.String("user", m.Author.ID),
		zap.String("name", name))
	dispatch(ctx, cmd, b.prefix, name, arg)
}

func dispatch(ctx context.Context, cmd *commands.BotCommand, prefix, name, arg string) {
	switch name {
	case "ping":
		cmd.Ping()
	case "help":
		cmd.Help(prefix)
	case "join":
		cmd.Join(ctx)
	case "play", "p":
		if arg == "" {
			reply(cmd, "Usage: "+prefix+"play <youtube_url>")
			return
		}
		cmd.Play(ctx, strings.Fields(arg)[0])
	case "lofi":
		cmd.Lofi(ctx, arg)
	case "leave":
		cmd.Leave(ctx)
	case "skip":
		cmd.Skip()
	case "queue", "q":
		cmd.Queue()
	case "stop":
		cmd.Stop()
	case "nowplaying", "np":
		cmd.NowPlaying()
	case "pause":
		cmd.Pause()
	case "resume":
		cmd.Resume()
	case "loop":
		cmd.Loop(ctx, arg)
	case "playtop":
		cmd.PlayTop(arg)
	case "remove":
		cmd.Remove(arg)
	case "shuffle":
		cmd.Shuffle()
	default:
		reply(cmd, "Unknown command. Type `"+prefix+"help` for available commands.")
	}
}

func reply(cmd *commands.BotCommand, msg string) {
	_, _ = cmd.Session.ChannelMessageSend(cmd.Message.ChannelID, msg)
}
