package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogSync runs one catalog sync on the worker.
	TaskCatalogSync = "catalog:sync"
)

// CatalogSyncPayload describes who asked for a sync.
type CatalogSyncPayload struct {
	Trigger     string    `json:"trigger"`
	RequestedBy string    `json:"requestedBy,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// NewCatalogSyncTask constructs an Asynq task. Syncs are never retried by
// the queue; the next scheduled run takes over.
func NewCatalogSyncTask(payload CatalogSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogSync, data, asynq.MaxRetry(0)), nil
}
