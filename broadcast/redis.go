package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"queuebot/audio"
)

const publishTimeout = 2 * time.Second

// RedisPublisher publishes every notification as JSON on a redis channel so
// other services can follow playback.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

// Dial connects to the redis server at url (redis://host:port/db) and
// checks it answers.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewRedisPublisher(rdb *redis.Client, channel string, log *zap.Logger) *RedisPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisPublisher{rdb: rdb, channel: channel, log: log}
}

func (p *RedisPublisher) Notify(n audio.Notification) {
	if err := p.Publish(context.Background(), n); err != nil {
		p.log.Warn("publishing notification",
			zap.String("guild", n.GuildID),
			zap.String("kind", string(n.Kind)),
			zap.Error(err))
	}
}

// Publish sends n, waiting at most publishTimeout.
func (p *RedisPublisher) Publish(ctx context.Context, n audio.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.rdb.Publish(ctx, p.channel, data).Err()
}
