// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package validate provides an accumulating validator for configuration.
package validate

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Error is one failed field.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError bundles every failed field of one validation pass.
type ValidationError struct {
	errs []Error
}

// Errors returns the individual failures.
func (e ValidationError) Errors() []Error { return e.errs }

func (e ValidationError) Error() string {
	msgs := make([]string, 0, len(e.errs))
	for _, err := range e.errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validator accumulates failures; checks never stop at the first one.
type Validator struct {
	errs []Error
}

// New creates a new validator
func New() *Validator {
	return &Validator{}
}

// AddError records a failure for field.
func (v *Validator) AddError(field, message string, value any) {
	v.errs = append(v.errs, Error{Field: field, Value: value, Message: message})
}

func (v *Validator) failf(field string, value any, format string, args ...any) {
	v.AddError(field, fmt.Sprintf(format, args...), value)
}

// IsValid reports whether nothing failed so far.
func (v *Validator) IsValid() bool { return len(v.errs) == 0 }

// Errors returns the failures recorded so far.
func (v *Validator) Errors() []Error { return v.errs }

// Err returns nil or a ValidationError holding a copy of the failures.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return ValidationError{errs: slices.Clone(v.errs)}
}

// URL checks an absolute URL with a host and, when schemes is non-empty, one
// of the given schemes.
func (v *Validator) URL(field, value string, schemes []string) {
	if value == "" {
		v.failf(field, value, "URL cannot be empty")
		return
	}
	u, err := url.Parse(value)
	switch {
	case err != nil:
		v.failf(field, value, "invalid URL: %v", err)
	case u.Host == "":
		v.failf(field, value, "URL must have a host")
	case len(schemes) > 0 && !slices.Contains(schemes, u.Scheme):
		v.failf(field, value, "unsupported URL scheme %q (allowed: %v)", u.Scheme, schemes)
	}
}

// ListenAddr checks a "host:port" listen address; the host may be empty.
func (v *Validator) ListenAddr(field, addr string) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		v.failf(field, addr, "invalid listen address: %v", err)
		return
	}
	if port, err := strconv.Atoi(portStr); err != nil || port < 0 || port > 65535 {
		v.failf(field, addr, "invalid port %q", portStr)
	}
}

// Directory checks a local directory. A missing directory is an error when
// mustExist is set and is created otherwise.
func (v *Validator) Directory(field, path string, mustExist bool) {
	if path == "" {
		v.failf(field, path, "directory path cannot be empty")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		v.failf(field, path, "invalid path: %v", err)
		return
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, os.ErrNotExist) && mustExist:
		v.failf(field, path, "directory does not exist")
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(abs, 0o750); err != nil {
			v.failf(field, path, "cannot create directory: %v", err)
		}
	case err != nil:
		v.failf(field, path, "cannot access directory: %v", err)
	case !info.IsDir():
		v.failf(field, path, "path is not a directory")
	}
}

// RemotePath checks an absolute, slash-separated remote store path.
func (v *Validator) RemotePath(field, p string) {
	switch {
	case strings.TrimSpace(p) == "":
		v.failf(field, p, "remote path cannot be empty")
	case !strings.HasPrefix(p, "/"):
		v.failf(field, p, "remote path must start with /")
	case slices.Contains(strings.Split(p, "/"), ".."):
		v.failf(field, p, "remote path contains traversal sequences (..)")
	}
}

// NotEmpty rejects empty and whitespace-only strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.failf(field, value, "value cannot be empty")
	}
}

// OneOf checks value against a fixed set.
func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.failf(field, value, "value must be one of %v, got %q", allowed, value)
	}
}

// Range checks minVal <= value <= maxVal.
func (v *Validator) Range(field string, value, minVal, maxVal int) {
	if value < minVal || value > maxVal {
		v.failf(field, value, "value must be between %d and %d, got %d", minVal, maxVal, value)
	}
}

// Positive checks value > 0.
func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.failf(field, value, "value must be positive, got %d", value)
	}
}

// PositiveFloat checks value > 0.
func (v *Validator) PositiveFloat(field string, value float64) {
	if value <= 0 {
		v.failf(field, value, "value must be positive, got %g", value)
	}
}

// NonNegative checks value >= 0.
func (v *Validator) NonNegative(field string, value int) {
	if value < 0 {
		v.failf(field, value, "value cannot be negative, got %d", value)
	}
}

// NonNegativeDuration checks value >= 0.
func (v *Validator) NonNegativeDuration(field string, value time.Duration) {
	if value < 0 {
		v.failf(field, value, "duration cannot be negative, got %s", value)
	}
}
