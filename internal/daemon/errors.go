// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import "errors"

var (
	// ErrMissingRunner is returned when a daemon is created without a runner.
	ErrMissingRunner = errors.New("runner is required")

	// ErrInvalidInterval is returned for a non-positive cycle interval.
	ErrInvalidInterval = errors.New("cycle interval must be positive")
)
