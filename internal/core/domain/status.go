package domain

import "strings"

// OperationStatus is the lifecycle state of an operation within one execution.
type OperationStatus uint8

const (
	// StatusReady means every dependency ended success-like and the operation
	// waits for a free slot. It is also the status a fresh or reset graph starts from.
	StatusReady OperationStatus = iota
	// StatusQueued means a worker slot picked the operation and is about to run it.
	StatusQueued
	// StatusExecuting means the operation pipeline is running.
	StatusExecuting
	// StatusSuccess means the command finished cleanly.
	StatusSuccess
	// StatusSuccessWithWarning means the command finished with exit code 0 but wrote to stderr.
	StatusSuccessWithWarning
	// StatusFailure means the command or its pipeline failed.
	StatusFailure
	// StatusBlocked means a dependency failed and the operation never ran.
	StatusBlocked
	// StatusSkipped means the outputs were already up to date or restored from cache.
	StatusSkipped
	// StatusNoOp means there was no command to run.
	StatusNoOp
)

var statusNames = [...]string{
	StatusReady:              "Ready",
	StatusQueued:             "Queued",
	StatusExecuting:          "Executing",
	StatusSuccess:            "Success",
	StatusSuccessWithWarning: "SuccessWithWarning",
	StatusFailure:            "Failure",
	StatusBlocked:            "Blocked",
	StatusSkipped:            "Skipped",
	StatusNoOp:               "NoOp",
}

func (s OperationStatus) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "Unknown"
}

// IsSuccessLike reports whether dependents may run after an operation ended with s.
func (s OperationStatus) IsSuccessLike() bool {
	switch s {
	case StatusSuccess, StatusSuccessWithWarning, StatusSkipped, StatusNoOp:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s is a final state.
func (s OperationStatus) IsTerminal() bool {
	return s.IsSuccessLike() || s == StatusFailure || s == StatusBlocked
}

// ParseStatus maps a worker-reported status string to an OperationStatus.
// Matching ignores case, spaces, hyphens and underscores, so both "SUCCESS WITH WARNINGS"
// and "SuccessWithWarning" are accepted. "from cache" maps to StatusSkipped.
func ParseStatus(raw string) (OperationStatus, bool) {
	normalized := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(raw)))

	switch normalized {
	case "success":
		return StatusSuccess, true
	case "successwithwarning", "successwithwarnings":
		return StatusSuccessWithWarning, true
	case "failure", "failed":
		return StatusFailure, true
	case "blocked":
		return StatusBlocked, true
	case "skipped", "fromcache":
		return StatusSkipped, true
	case "noop":
		return StatusNoOp, true
	default:
		return StatusReady, false
	}
}
