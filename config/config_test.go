package config

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SYNCD_API_URL", "")
	t.Setenv("SYNCD_MODE", "")

	cfg := Load()
	assert.Equal(t, cfg.APIURL, "http://localhost:8080")
	assert.Equal(t, cfg.Mode, ModeDevelopment)
	assert.Equal(t, cfg.IsProduction(), false)
	assert.Equal(t, cfg.AllowedOrigins, []string{"http://localhost:5173", "http://localhost:3000"})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SYNCD_API_URL", "https://api.syncd.test/")
	t.Setenv("SYNCD_SOCKET_URL", "wss://live.syncd.test/ws")
	t.Setenv("SYNCD_MODE", ModeProduction)
	t.Setenv("PORT", "9000")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.test , ,https://b.test")

	cfg := Load()
	assert.Equal(t, cfg.APIURL, "https://api.syncd.test")
	assert.Equal(t, cfg.SocketURL, "wss://live.syncd.test/ws")
	assert.Equal(t, cfg.IsProduction(), true)
	assert.Equal(t, cfg.ServerAddr, ":9000")
	assert.Equal(t, cfg.AllowedOrigins, []string{"https://a.test", "https://b.test"})
}
