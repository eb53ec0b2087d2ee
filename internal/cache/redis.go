package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"tumourscan/internal/config"
	"tumourscan/internal/model"
)

// Redis stores users as JSON under <prefix>user:<id>. PasswordHash is not serialized, so cached
// users are only fit for identity and role checks.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    logrus.FieldLogger
}

// NewRedis connects using cfg.RedisURL and verifies the server answers.
func NewRedis(ctx context.Context, cfg config.CacheConfig, log logrus.FieldLogger) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return newRedis(client, cfg.KeyPrefix, cfg.TTL, log), nil
}

func newRedis(client *redis.Client, prefix string, ttl time.Duration, log logrus.FieldLogger) *Redis {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		log:    log.WithField("component", "user_cache"),
	}
}

func (c *Redis) key(id string) string { return c.prefix + "user:" + id }

func (c *Redis) Get(ctx context.Context, id string) (*model.User, bool) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.WithError(err).Warn("cache get failed")
		return nil, false
	}

	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		c.client.Del(ctx, c.key(id))
		return nil, false
	}
	return &u, true
}

func (c *Redis) Add(ctx context.Context, u *model.User) {
	raw, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(u.ID), raw, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("cache set failed")
	}
}

// Close releases the connection pool.
func (c *Redis) Close() error { return c.client.Close() }
