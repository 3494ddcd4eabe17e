package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appconfig "github.com/GTDGit/gtd_bundle/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(&appconfig.DatabaseConfig{
		Host: "db", Port: "5432", User: "bundle", Password: "p@ss/word", Name: "bundles", SSLMode: "disable",
	})
	assert.Equal(t, "postgres://bundle:p%40ss%2Fword@db:5432/bundles?sslmode=disable", dsn)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, backoff(1))
	assert.Equal(t, time.Second, backoff(2))
	assert.Equal(t, 4*time.Second, backoff(4))
	assert.Equal(t, maxDelay, backoff(5))
}

func TestConnectStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, &appconfig.DatabaseConfig{Host: "127.0.0.1", Port: "1", User: "u", Name: "n", SSLMode: "disable"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnectNilConfig(t *testing.T) {
	_, err := Connect(context.Background(), nil)
	assert.Error(t, err)
}
