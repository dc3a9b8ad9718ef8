package config

import (
	"strconv"
	"time"
)

// parseDuration handles the config schema's compact duration strings:
// a run of digits followed by one of ms/s/m/h/d. time.ParseDuration isn't
// used because it doesn't accept "d" and requires a unit after every
// numeric group; this is intentionally narrower, matching
// original_source/src/config.rs's PollConfig::parse.
func parseDuration(s string) (time.Duration, error) {
	invalid := func() error { return newError("Invalid duration: %s", s) }

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i == len(s) {
		return 0, invalid()
	}
	digits, suffix := s[:i], s[i:]
	val, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, invalid()
	}
	switch suffix {
	case "ms":
		return time.Duration(val) * time.Millisecond, nil
	case "s":
		return time.Duration(val) * time.Second, nil
	case "m":
		return time.Duration(val) * time.Minute, nil
	case "h":
		return time.Duration(val) * time.Hour, nil
	case "d":
		return time.Duration(val) * 24 * time.Hour, nil
	default:
		return 0, invalid()
	}
}
