package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// Duration extends time.Duration with a "d" (days) unit, e.g. "7d" or "1d12h"
type Duration struct {
	time.Duration
}

// ParseDuration parses a Go duration string optionally prefixed by a day count
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("empty duration")
	}

	var days time.Duration
	if idx := strings.Index(v, "d"); idx >= 0 {
		n, err := strconv.Atoi(v[:idx])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid days value %q", v[:idx])
		}
		days = time.Duration(n) * day
		v = v[idx+1:]
		if v == "" {
			return days, nil
		}
	}

	rest, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %w", err)
	}
	return days + rest, nil
}

// UnmarshalText implements encoding.TextUnmarshaler, used by envconfig
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		return nil
	}
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
