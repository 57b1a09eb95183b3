package domain

import (
	"errors"
	"time"
)

// Control-flow outcomes of the scan controllers. These are signals, not
// failures: callers branch on them instead of treating them as errors.
var (
	// ErrScanBusy is returned when a one-shot scan is requested while one is
	// already active.
	ErrScanBusy = errors.New("one-shot scan already active")

	// ErrScanCancelled is returned from a run that was stopped on demand.
	ErrScanCancelled = errors.New("scan cancelled")
)

// ScanStatus holds runtime information about the continuous scan controller.
// It is mutated only by its owning controller.
type ScanStatus struct {
	Active          bool          `json:"active"`
	Folders         []string      `json:"folders"`
	PollInterval    time.Duration `json:"poll_interval"`
	LastStartedAt   *time.Time    `json:"last_started_at,omitempty"`
	LastFinishedAt  *time.Time    `json:"last_finished_at,omitempty"`
	LastError       string        `json:"last_error,omitempty"`
	LastResultCount *int          `json:"last_result_count,omitempty"`
}

// RescanStatus holds runtime information about the cancellable one-shot scan.
type RescanStatus struct {
	Active          bool       `json:"active"`
	Folders         []string   `json:"folders"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	LastResultCount *int       `json:"last_result_count,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	Cancelled       bool       `json:"cancelled"`
}
