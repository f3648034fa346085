package common

import (
	"strconv"
	"strings"
)

// AtoiDefault parses value as an int, returning def when it is blank or malformed.
func AtoiDefault(value string, def int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

// Int64Default is AtoiDefault for whole-dong amounts.
func Int64Default(value string, def int64) int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
