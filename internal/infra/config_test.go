package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Запуск из каталога пакета: config.yaml не найдется, работаем на дефолтах
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int32(15), cfg.Database.MaxConns)
	assert.Equal(t, "info", cfg.Logger.Level)

	assert.Equal(t, 100000.0, cfg.Engine.HighValueRevenue)
	assert.Equal(t, 50000.0, cfg.Engine.MidValueRevenue)
	assert.Equal(t, 60, cfg.Engine.AtRiskHealth)
	assert.Equal(t, 30, cfg.Engine.CalendarHorizonDays)
	assert.Equal(t, 72*time.Hour, cfg.Engine.FollowUpDelay)
	assert.Equal(t, 3, cfg.Engine.NotifyAttempts)
	assert.Equal(t, uint32(5), cfg.Engine.CBMaxConsecErrors)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("ENGINE_AT_RISK_HEALTH", "70")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 70, cfg.Engine.AtRiskHealth)
}

func TestLoadConfig_KeyFromEnv(t *testing.T) {
	t.Setenv("AUTH_PUBLIC_KEY_DATA", "-----BEGIN PUBLIC KEY-----\nstub\n-----END PUBLIC KEY-----")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Contains(t, string(cfg.Auth.PublicKey), "BEGIN PUBLIC KEY")
}
