package catalog

import (
	"encoding/json"
	"time"
)

// Totals counts what a sync run collected.
type Totals struct {
	Products int `json:"products"`
	Prices   int `json:"prices"`
	Sections int `json:"sections"`
	Brands   int `json:"brands"`
	Genres   int `json:"genres"`
	Groups   int `json:"groups"`
}

// Snapshot is the diagnostics file written next to the catalog. It holds the
// run's counts plus the raw vendor collections as received.
type Snapshot struct {
	RunID             string            `json:"runId"`
	Trigger           string            `json:"trigger"`
	LastSync          time.Time         `json:"lastSync"`
	DurationMillis    int64             `json:"durationMs"`
	Totals            Totals            `json:"totals"`
	PreservedImages   int               `json:"preservedImages"`
	ProductsTruncated bool              `json:"productsTruncated"`
	Warnings          []string          `json:"warnings"`
	Sections          []json.RawMessage `json:"sections"`
	Brands            []json.RawMessage `json:"brands"`
	Genres            []json.RawMessage `json:"genres"`
	Groups            []json.RawMessage `json:"groups"`
	Prices            []json.RawMessage `json:"prices"`
	RawProducts       []json.RawMessage `json:"rawProducts"`
}

// Summary is the raw-free view of a snapshot returned by status endpoints.
type Summary struct {
	RunID             string    `json:"runId"`
	Trigger           string    `json:"trigger"`
	LastSync          time.Time `json:"lastSync"`
	DurationMillis    int64     `json:"durationMs"`
	Totals            Totals    `json:"totals"`
	PreservedImages   int       `json:"preservedImages"`
	ProductsTruncated bool      `json:"productsTruncated"`
	Warnings          []string  `json:"warnings"`
}

// Summary drops the raw collections.
func (s Snapshot) Summary() Summary {
	warnings := s.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return Summary{
		RunID:             s.RunID,
		Trigger:           s.Trigger,
		LastSync:          s.LastSync,
		DurationMillis:    s.DurationMillis,
		Totals:            s.Totals,
		PreservedImages:   s.PreservedImages,
		ProductsTruncated: s.ProductsTruncated,
		Warnings:          warnings,
	}
}
