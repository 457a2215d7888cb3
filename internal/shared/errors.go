package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrSyncInProgress is returned when another catalog sync holds the lock.
	ErrSyncInProgress = errors.New("catalog sync already in progress")
	// ErrLockLost indicates the lock expired or was taken over before release.
	ErrLockLost = errors.New("lock no longer held")
)
