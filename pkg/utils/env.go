package utils

import (
	"os"
	"time"
)

func ParseWithFallback(envName string, fallback string) string {
	result := os.Getenv(envName)
	if result == "" {
		result = fallback
	}

	return result
}

// ParseDurationWithFallback reads a Go duration ("5s", "250ms") from envName.
// Unset or malformed values fall back.
func ParseDurationWithFallback(envName string, fallback time.Duration) time.Duration {
	raw := os.Getenv(envName)
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}
