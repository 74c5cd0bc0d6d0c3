package config

import (
	"log/slog"

	"github.com/joho/godotenv"
)

// LoadEnv loads provider API keys and other environment overrides from a
// .env file before Viper reads GATEWAY_-prefixed settings. Missing is not
// an error: provider keys may already be set in the real environment. Runs
// before the gateway's own slog logger exists, so it logs through the
// default logger.
func LoadEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	if err := godotenv.Load(paths...); err != nil {
		slog.Debug("no .env file loaded, using process environment", "error", err)
	}
}
