// Package cache holds authenticated users between requests so bearer checks avoid a database
// round trip. The in-process LRU is the default; Redis shares entries across replicas.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"tumourscan/internal/model"
)

// UserCache maps user IDs to users. Implementations never return errors; a failing backend
// behaves as a miss.
type UserCache interface {
	Get(ctx context.Context, id string) (*model.User, bool)
	Add(ctx context.Context, u *model.User)
}

// LRU is a size- and age-bounded in-process UserCache.
type LRU struct {
	lru *expirable.LRU[string, *model.User]
}

func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 256
	}
	return &LRU{lru: expirable.NewLRU[string, *model.User](size, nil, ttl)}
}

func (c *LRU) Get(_ context.Context, id string) (*model.User, bool) {
	return c.lru.Get(id)
}

func (c *LRU) Add(_ context.Context, u *model.User) {
	c.lru.Add(u.ID, u)
}
