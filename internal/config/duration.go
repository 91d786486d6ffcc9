package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField decodes a duration string such as "50ms" or "1.5s"
// from a config field. Whitespace-only input means "not set" and yields
// zero without an error; negative values are rejected because no period or
// budget here runs backwards. path names the field in error messages.
func ParseDurationField(path, raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with a fallback: unset or
// zero values become def, so callers can layer config over built-in tuning.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
