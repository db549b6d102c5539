package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"queuebot/api"
	"queuebot/audio"
	"queuebot/broadcast"
	"queuebot/config"
	"queuebot/framework"
	"queuebot/logging"
	"queuebot/store"
	"queuebot/vc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "queuebot:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer settings.Close()

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("creating discord session: %w", err)
	}

	queues := audio.NewQueueManager()
	if n, err := settings.Restore(ctx, queues); err != nil {
		log.Warn("restoring loop modes", zap.Error(err))
	} else {
		log.Info("restored loop modes", zap.Int("guilds", n))
	}

	hub := api.NewHub(log.Named("ws"))
	announcer := framework.NewAnnouncer(session, log.Named("announcer"))
	notifiers := audio.Notifiers{announcer, hub}

	if cfg.HasRedisConfig() {
		rdb, err := broadcast.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn("redis unavailable, not publishing notifications", zap.Error(err))
		} else {
			defer rdb.Close()
			notifiers = append(notifiers, broadcast.NewRedisPublisher(rdb, cfg.Redis.Channel, log.Named("redis")))
		}
	}

	resolver := audio.NewYTDLPResolver()
	router := audio.NewRouter(queues, resolver, notifiers, log.Named("router"))
	voice := vc.NewManager(session, queues, router.Events(), log.Named("voice"))
	player := audio.NewService(queues, router, resolver, voice, log.Named("player"))
	bot := framework.New(session, voice, player, announcer, framework.Options{
		Prefix:   cfg.Discord.Prefix,
		Settings: settings,
		Log:      log.Named("bot"),
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		router.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	if cfg.APIEnabled() {
		srv := api.NewServer(player, hub, cfg.API.AllowedOrigin, log.Named("api"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, cfg.APIAddr()); err != nil {
				log.Error("api server", zap.Error(err))
			}
		}()
	} else {
		log.Info("not starting api server because it is disabled")
	}

	err = bot.Run(ctx)
	stop()
	wg.Wait()
	return err
}
