package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tumourscan/internal/config"
	"tumourscan/internal/logger"
)

func TestBuildPostgresDSN(t *testing.T) {
	base := config.DatabaseConfig{Host: "db", Port: "5432", User: "scan", Name: "tumourscan"}

	tests := []struct {
		name    string
		mutate  func(c *config.DatabaseConfig)
		want    string
		wantErr bool
	}{
		{
			name: "full config",
			mutate: func(c *config.DatabaseConfig) {
				c.Password = "s3cret"
				c.SSLMode = "disable"
				c.ApplicationName = "tumourscan"
				c.ConnectTimeoutSec = 5
			},
			want: "postgres://scan:s3cret@db:5432/tumourscan?application_name=tumourscan&connect_timeout=5&sslmode=disable",
		},
		{
			name:   "password with reserved characters is escaped",
			mutate: func(c *config.DatabaseConfig) { c.Password = "p@ss/word" },
			want:   "postgres://scan:p%40ss%2Fword@db:5432/tumourscan",
		},
		{
			name:   "no password no options",
			mutate: func(*config.DatabaseConfig) {},
			want:   "postgres://scan@db:5432/tumourscan",
		},
		{name: "missing host", mutate: func(c *config.DatabaseConfig) { c.Host = "" }, wantErr: true},
		{name: "missing port", mutate: func(c *config.DatabaseConfig) { c.Port = "" }, wantErr: true},
		{name: "missing user", mutate: func(c *config.DatabaseConfig) { c.User = "" }, wantErr: true},
		{name: "missing name", mutate: func(c *config.DatabaseConfig) { c.Name = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)

			got, err := BuildPostgresDSN(c)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func stubOpen(t *testing.T, db *sql.DB, err error) {
	t.Helper()
	orig := sqlOpen
	sqlOpen = func(string, string) (*sql.DB, error) { return db, err }
	t.Cleanup(func() { sqlOpen = orig })
}

func TestNewPostgres(t *testing.T) {
	ctx := context.Background()
	conf := config.DatabaseConfig{
		Host:               "localhost",
		Port:               "5432",
		User:               "scan",
		Password:           "pass",
		Name:               "tumourscan",
		MaxOpenConns:       10,
		MaxIdleConns:       5,
		ConnMaxLifetimeSec: 300,
	}

	t.Run("success applies pool limits", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		stubOpen(t, db, nil)
		mock.ExpectPing()

		got, err := NewPostgres(ctx, conf, logger.Discard())

		require.NoError(t, err)
		assert.Equal(t, 10, got.Stats().MaxOpenConnections)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("open error", func(t *testing.T) {
		stubOpen(t, nil, errors.New("open error"))

		got, err := NewPostgres(ctx, conf, logger.Discard())

		assert.ErrorContains(t, err, "sql open: open error")
		assert.Nil(t, got)
	})

	t.Run("ping error closes the pool", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		stubOpen(t, db, nil)
		mock.ExpectPing().WillReturnError(errors.New("ping failed"))
		mock.ExpectClose()

		got, err := NewPostgres(ctx, conf, logger.Discard())

		assert.ErrorContains(t, err, "db ping: ping failed")
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid config", func(t *testing.T) {
		got, err := NewPostgres(ctx, config.DatabaseConfig{}, logger.Discard())
		assert.Error(t, err)
		assert.Nil(t, got)
	})
}

func TestRegisterStats(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	reg := prometheus.NewRegistry()

	require.NoError(t, RegisterStats(reg, db, "tumourscan"))

	n, err := testutil.GatherAndCount(reg, "go_sql_max_open_connections")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Error(t, RegisterStats(reg, db, "tumourscan"), "same db name twice")
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	assert.NoError(t, Ping(context.Background(), db, time.Second))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.EqualError(t, Ping(context.Background(), db, time.Second), "down")

	assert.Error(t, Ping(context.Background(), nil, time.Second))
}
