package catalogsync

import (
	"context"
	"sync"
)

// DefaultHistoryLimit is how many runs are kept when no limit is configured.
const DefaultHistoryLimit = 50

// HistoryRepository stores the run ledger.
type HistoryRepository interface {
	Record(ctx context.Context, res Result) error
	List(ctx context.Context, limit int) ([]Result, error)
}

// MemoryHistory keeps the most recent runs in process memory.
type MemoryHistory struct {
	mu    sync.Mutex
	limit int
	runs  []Result
}

// NewMemoryHistory returns a ledger bounded to limit entries.
func NewMemoryHistory(limit int) *MemoryHistory {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MemoryHistory{limit: limit}
}

// Record appends res, dropping the oldest entry past the limit.
func (h *MemoryHistory) Record(_ context.Context, res Result) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, res)
	if over := len(h.runs) - h.limit; over > 0 {
		h.runs = append(h.runs[:0:0], h.runs[over:]...)
	}
	return nil
}

// List returns up to limit runs, newest first.
func (h *MemoryHistory) List(_ context.Context, limit int) ([]Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > len(h.runs) {
		limit = len(h.runs)
	}
	out := make([]Result, 0, limit)
	for i := len(h.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.runs[i])
	}
	return out, nil
}
