package main

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tumourscan/internal/config"
)

func TestRun_ReturnsInitErrors(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.InfoLevel)

	cfg := &config.AppConfig{
		Tracing:  config.TracingConfig{Disabled: true},
		Database: config.DatabaseConfig{Host: "db", Port: "5432"},
	}

	err := run(context.Background(), cfg, log)

	require.Error(t, err)
	assert.ErrorContains(t, err, "connect to database")
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.FatalLevel, e.Level)
	}
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "tracing_configured", hook.LastEntry().Message)
}

func TestNewUserCache_DefaultsToLRU(t *testing.T) {
	log, _ := test.NewNullLogger()

	c, closeFn, err := newUserCache(context.Background(), config.CacheConfig{LRUSize: 8}, log)

	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.NotPanics(t, closeFn)
}
