package catalogsync

import (
	"time"

	"github.com/guanabara/catalog-sync/internal/catalog"
)

// Trigger names who started a run.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerCLI       = "cli"
)

// Run outcomes stored in the history.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Result describes one sync run. It is both the HTTP response of POST /sync
// and the history entry.
type Result struct {
	RunID             string         `json:"runId"`
	Trigger           string         `json:"trigger"`
	Status            string         `json:"status"`
	StartedAt         time.Time      `json:"startedAt"`
	FinishedAt        time.Time      `json:"finishedAt"`
	DurationMillis    int64          `json:"durationMs"`
	Totals            catalog.Totals `json:"totals"`
	PreservedImages   int            `json:"preservedImages"`
	ProductsTruncated bool           `json:"productsTruncated"`
	Warnings          []string       `json:"warnings"`
	Error             string         `json:"error,omitempty"`
}

// Status is the response of GET /sync.
type Status struct {
	Running  bool             `json:"running"`
	LastSync *catalog.Summary `json:"lastSync"`
}
