package config

import (
	"fmt"
	"strings"
	"time"
)

// DurationOrDefault parses value as a duration, falling back to
// defaultValue when value is blank. Duration fields stay strings in the
// config structs so the yaml and env sources remain symmetric; this is
// the one place they get parsed.
func DurationOrDefault(value, defaultValue string) (time.Duration, error) {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		candidate = strings.TrimSpace(defaultValue)
	}
	if candidate == "" {
		return 0, fmt.Errorf("no duration value given")
	}

	d, err := time.ParseDuration(candidate)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", candidate, err)
	}
	return d, nil
}
