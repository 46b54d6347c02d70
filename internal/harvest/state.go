// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package harvest

// State is a step of the harvest state machine.
type State string

const (
	StateInit           State = "init"
	StateCheckCapacity  State = "check_capacity"
	StateFetchCandidate State = "fetch_candidate"
	StateClassify       State = "classify"
	StateDownload       State = "download"
	StateExtract        State = "extract"
	StateRecordHistory  State = "record_history"

	// Terminal states.
	StateCapacityReached State = "capacity_reached"
	StateExhausted       State = "exhausted"
	StateResolutionError State = "resolution_error"
	StateCapacityUnknown State = "capacity_unknown"
	StateCancelled       State = "cancelled"
	StateInitError       State = "init_error"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	switch s {
	case StateCapacityReached, StateExhausted, StateResolutionError,
		StateCapacityUnknown, StateCancelled, StateInitError:
		return true
	default:
		return false
	}
}

// Video outcomes recorded in the run report and metrics.
const (
	OutcomeExtracted      = "extracted"
	OutcomeExtractFailed  = "extract_failed"
	OutcomeMalformed      = "malformed"
	OutcomeDownloadFailed = "download_failed"
	OutcomeFiltered       = "filtered"
)
