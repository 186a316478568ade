// Package config reads the picker's configuration from the environment.
// Every key lives under the PICKER_ namespace; callers pass the bare name
// ("SD_URL", not "PICKER_SD_URL"). A .env file found near the working
// directory is loaded once before the first lookup.
package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gregm123456/picker/internal/env"
)

// Prefix scopes every lookup so the picker owns its whole namespace and
// cannot collide with unrelated variables on a shared Pi.
const Prefix = "PICKER_"

var ensureOnce sync.Once

func lookup(key string) string {
	ensureOnce.Do(func() {
		_ = env.Ensure()
	})
	return strings.TrimSpace(os.Getenv(Prefix + key))
}

// String returns the trimmed PICKER_<key> value or fallback when unset.
func String(key, fallback string) string {
	if val := lookup(key); val != "" {
		return val
	}
	return fallback
}

// Duration parses PICKER_<key> as a Go duration, or returns fallback.
func Duration(key string, fallback time.Duration) time.Duration {
	if val := lookup(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// Int parses PICKER_<key> as an integer, or returns fallback.
func Int(key string, fallback int) int {
	if val := lookup(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// Float64 parses PICKER_<key> as a float, or returns fallback. Used for
// panel voltages and gamma, where a typo must not silently become zero.
func Float64(key string, fallback float64) float64 {
	if val := lookup(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// Bool parses PICKER_<key> as a boolean (1/true/yes, 0/false/no), or
// returns fallback on anything else.
func Bool(key string, fallback bool) bool {
	switch strings.ToLower(lookup(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return fallback
}
