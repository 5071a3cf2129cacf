package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisKeyPrefix = "alert:dedup:"

// RedisGate claims a key with SET NX and a TTL equal to the window, so two
// overlapping runs cannot both create the same alert. When store is set it is
// consulted first, which covers alerts written before the claim existed.
type RedisGate struct {
	client *redis.Client
	window time.Duration
	store  *StoreGate
}

// NewRedisGate builds a gate over client. store may be nil.
func NewRedisGate(client *redis.Client, window time.Duration, store *StoreGate) *RedisGate {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisGate{client: client, window: window, store: store}
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (g *RedisGate) ShouldSuppress(ctx context.Context, key Key) (bool, error) {
	if g.store != nil {
		suppress, err := g.store.ShouldSuppress(ctx, key)
		if err != nil {
			return false, err
		}
		if suppress {
			return true, nil
		}
	}

	claimed, err := g.client.SetNX(ctx, redisKeyPrefix+key.String(), "1", g.window).Result()
	if err != nil {
		if g.store != nil {
			log.WithError(err).WithField("key", key.String()).Warn("Redis dedup claim failed, falling back to store check")
			return false, nil
		}
		return false, fmt.Errorf("redis dedup claim: %w", err)
	}
	return !claimed, nil
}

func (g *RedisGate) Release(ctx context.Context, key Key) error {
	if err := g.client.Del(ctx, redisKeyPrefix+key.String()).Err(); err != nil {
		return fmt.Errorf("redis dedup release: %w", err)
	}
	return nil
}
