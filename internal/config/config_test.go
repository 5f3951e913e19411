package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "safelink", cfg.AppName)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "safelink-activity", cfg.Kafka.ActivityTopic)
	assert.Equal(t, 24*time.Hour, cfg.Auth.JWTExpiry)

	assert.Equal(t, 5000.0, cfg.SOS.NearbyRadiusMeters)
	assert.Equal(t, 24*time.Hour, cfg.SOS.AlertTTL)
	assert.Equal(t, 20, cfg.SOS.PageSize)

	assert.Equal(t, 20, cfg.Limits.OutboundRequestsPerDay)
	assert.Equal(t, 50, cfg.Limits.InboundPendingMax)
	assert.Equal(t, 10*time.Minute, cfg.Presence.OnlineThreshold)

	// The websocket ping period must be shorter than the pong wait, or
	// healthy connections would be dropped.
	assert.Less(t, cfg.WebSocket.PingPeriodSeconds, cfg.WebSocket.PongWaitSeconds)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("LIMITS_OUTBOUND_REQUESTS_PER_DAY", "5")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Limits.OutboundRequestsPerDay)
}
