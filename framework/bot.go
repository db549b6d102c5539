package framework

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"queuebot/audio"
	commands "queuebot/cmd"
	"queuebot/vc"
)

const DefaultPrefix = "!"

type Options struct {
	Prefix   string
	Settings commands.LoopStore // may be nil
	Log      *zap.Logger
}

// Bot routes chat commands of a discord session to the player.
type Bot struct {
	session   *discordgo.Session
	voice     *vc.Manager
	player    *audio.Service
	announcer *Announcer
	settings  commands.LoopStore
	prefix    string
	log       *zap.Logger

	ctx context.Context
}

func New(s *discordgo.Session, voice *vc.Manager, player *audio.Service, announcer *Announcer, opts Options) *Bot {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Bot{
		session:   s,
		voice:     voice,
		player:    player,
		announcer: announcer,
		settings:  opts.Settings,
		prefix:    opts.Prefix,
		log:       opts.Log,
		ctx:       context.Background(),
	}
}

// Run connects to discord and serves commands until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx

	b.session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent
	remove := b.session.AddHandler(b.onMessageCreate)
	defer remove()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}
	b.log.Info("bot is running", zap.String("prefix", b.prefix))

	<-ctx.Done()

	b.log.Info("shutting down bot")
	if b.voice != nil {
		b.voice.Close()
	}
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("closing discord session: %w", err)
	}
	return nil
}
