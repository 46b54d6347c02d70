// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package validate

import (
	"slices"
	"strings"
)

// LogLevel is a level accepted by the logger configuration.
type LogLevel string

var logLevels = []LogLevel{"trace", "debug", "info", "warn", "error"}

// ErrInvalidLogLevel is returned by ParseLogLevel.
var ErrInvalidLogLevel = Error{
	Field:   "logLevel",
	Message: "invalid log level (must be: trace, debug, info, warn, error)",
}

// ParseLogLevel accepts a level case-insensitively.
func ParseLogLevel(s string) (LogLevel, error) {
	level := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(logLevels, level) {
		return "", ErrInvalidLogLevel
	}
	return level, nil
}
