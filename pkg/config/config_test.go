package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_defaults(t *testing.T) {
	cfg, err := Load("")
	assert.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, 8081, cfg.WS.Port)
	assert.Equal(t, 5*time.Second, cfg.WS.SendTimeout)
	assert.Equal(t, 20, cfg.Game.TickRate)
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, "sqlite", cfg.DB.Driver)
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv("LOCKSTEP_AUTH_SECRET", "supersecret")
	t.Setenv("LOCKSTEP_WS_PORT", "9999")
	t.Setenv("LOCKSTEP_GAME_TICKRATE", "50")
	t.Setenv("LOCKSTEP_DB_DRIVER", "postgres")

	cfg, err := Load("")
	assert.NoError(t, err)

	assert.Equal(t, "supersecret", cfg.Auth.Secret)
	assert.Equal(t, 9999, cfg.WS.Port)
	assert.Equal(t, 50, cfg.Game.TickRate)
	assert.Equal(t, 20*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, "postgres", cfg.DB.Driver)
}

func TestLoad_rejectsNonPositiveTickRate(t *testing.T) {
	t.Setenv("LOCKSTEP_GAME_TICKRATE", "0")

	_, err := Load("")
	assert.Error(t, err)
}
