package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tumourscan/internal/config"
	"tumourscan/internal/logger"
	"tumourscan/internal/model"
)

func TestLRU(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(2, time.Minute)

	_, ok := c.Get(ctx, "u1")
	assert.False(t, ok)

	c.Add(ctx, &model.User{ID: "u1", Role: model.RoleDoctor})
	c.Add(ctx, &model.User{ID: "u2"})
	c.Add(ctx, &model.User{ID: "u3"})

	_, ok = c.Get(ctx, "u1")
	assert.False(t, ok, "oldest entry evicted")
	u, ok := c.Get(ctx, "u3")
	assert.True(t, ok)
	assert.Equal(t, "u3", u.ID)
}

func TestLRU_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(0, 10*time.Millisecond)
	c.Add(ctx, &model.User{ID: "u1"})

	assert.Eventually(t, func() bool {
		_, ok := c.Get(ctx, "u1")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestNewRedis_BadURL(t *testing.T) {
	c, err := NewRedis(context.Background(), config.CacheConfig{RedisURL: "http://not-redis"}, logger.Discard())
	assert.Nil(t, c)
	assert.ErrorContains(t, err, "parse redis url")
}
