package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "player", cfg.PlayerName)
	assert.Equal(t, "0.0.0.0", cfg.BindAddress)
	assert.Equal(t, 7777, cfg.Port)
	assert.Equal(t, 60*time.Second, cfg.ReadyTimeout)
	assert.Equal(t, 5, cfg.MaxRounds)
	assert.Equal(t, "127.0.0.1:8090", cfg.StatusAddr)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DUEL_PLAYER_NAME", "alice")
	t.Setenv("DUEL_PORT", "9001")
	t.Setenv("DUEL_READY_TIMEOUT", "30s")
	t.Setenv("DUEL_MAX_ROUNDS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.PlayerName)
	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.ReadyTimeout)
	assert.Equal(t, 3, cfg.MaxRounds)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("DUEL_PORT", "70000")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsZeroRounds(t *testing.T) {
	t.Setenv("DUEL_MAX_ROUNDS", "0")
	_, err := Load()
	assert.Error(t, err)
}
