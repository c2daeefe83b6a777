package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration accepts the short "<n>{s,m,h,d}" form used in service files
// ("30s", "5m", "1h", "2d") and falls back to time.ParseDuration for anything
// else ("1m30s", "500ms").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	value, unit := s[:len(s)-1], s[len(s)-1]
	if n, err := strconv.ParseUint(value, 10, 32); err == nil {
		switch unit {
		case 's':
			return time.Duration(n) * time.Second, nil
		case 'm':
			return time.Duration(n) * time.Minute, nil
		case 'h':
			return time.Duration(n) * time.Hour, nil
		case 'd':
			return time.Duration(n) * 24 * time.Hour, nil
		}
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
