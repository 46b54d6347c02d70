// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRunID     = "run_id"
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldOp        = "op"

	// Remote store fields
	FieldRemotePath = "remote_path"
	FieldLocalPath  = "local_path"
	FieldFramePath  = "frame_path"
	FieldAttempt    = "attempt"
	FieldAttempts   = "attempts"

	// Video / sampling fields
	FieldRegistrator = "registrator"
	FieldCargo       = "cargo"
	FieldSwitchCode  = "switch_code"
	FieldFPS         = "fps"
	FieldTargetFPS   = "target_fps"
	FieldInterval    = "interval"
	FieldFrames      = "frames"

	// Capacity fields
	FieldFramesInStore = "frames_in_store"
	FieldCeiling       = "ceiling"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
)
