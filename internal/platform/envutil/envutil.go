package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// String returns the trimmed value of name, or def when it is unset or blank.
func String(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func Int(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// NonNegativeInt is Int with negative values clamped to zero.
func NonNegativeInt(name string, def int) int {
	if n := Int(name, def); n > 0 {
		return n
	}
	return 0
}

func Bool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func Seconds(name string, def int) time.Duration {
	return time.Duration(NonNegativeInt(name, def)) * time.Second
}

func Millis(name string, def int) time.Duration {
	return time.Duration(NonNegativeInt(name, def)) * time.Millisecond
}
