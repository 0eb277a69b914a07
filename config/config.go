package config

import (
	"os"
	"strings"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

type Config struct {
	APIURL    string
	SocketURL string
	Mode      string

	// devserver only
	ServerAddr     string
	JWTSecret      string
	AllowedOrigins []string
	SeedPassword   string
}

func Load() *Config {
	return &Config{
		APIURL:         strings.TrimRight(getEnv("SYNCD_API_URL", "http://localhost:8080"), "/"),
		SocketURL:      strings.TrimRight(getEnv("SYNCD_SOCKET_URL", "ws://localhost:8080/ws"), "/"),
		Mode:           getEnv("SYNCD_MODE", ModeDevelopment),
		ServerAddr:     ":" + getEnv("PORT", "8080"),
		JWTSecret:      getEnv("JWT_SECRET", "syncd-secret-key-change-in-production"),
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		SeedPassword:   getEnv("SYNCD_SEED_PASSWORD", "password"),
	}
}

func (c *Config) IsProduction() bool {
	return c.Mode == ModeProduction
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
