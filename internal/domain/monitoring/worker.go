package monitoring

import (
	"strings"
	"time"
)

// WorkerStatus is the liveness of a worker as reported by the backend.
type WorkerStatus string

const (
	WorkerStatusOnline  WorkerStatus = "online"
	WorkerStatusOffline WorkerStatus = "offline"
	WorkerStatusUnknown WorkerStatus = "unknown"
)

// ParseWorkerStatus maps backend values onto WorkerStatus. Booleans encoded
// as strings are accepted since some backends report `"status": true`.
func ParseWorkerStatus(s string) WorkerStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "online", "true", "up":
		return WorkerStatusOnline
	case "offline", "false", "down":
		return WorkerStatusOffline
	default:
		return WorkerStatusUnknown
	}
}

// Worker is a process consuming tasks, keyed by hostname.
type Worker struct {
	Hostname       string
	Status         WorkerStatus
	Active         int
	Processed      int64
	LoadAvg        [3]float64
	LastHeartbeat  *time.Time
	PoolSize       int
	MaxConcurrency int
}

// Validate checks that the worker can be keyed.
func (w Worker) Validate() error {
	if w.Hostname == "" {
		return ErrMissingIdentity
	}
	return nil
}

// Clone returns a deep copy of w.
func (w Worker) Clone() Worker {
	c := w
	c.LastHeartbeat = cloneTime(w.LastHeartbeat)
	return c
}
