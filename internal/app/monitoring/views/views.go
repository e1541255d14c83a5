// Package views derives read-only projections from model snapshots. Every
// function is pure: the same input yields the same output and the input is
// never modified.
package views

import (
	"fmt"
	"strings"

	"github.com/ahrav/taskpulse/internal/domain/monitoring"
)

// Filter selects tasks by state-set membership.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterActive  Filter = "active"
	FilterFailed  Filter = "failed"
	FilterSuccess Filter = "success"
)

// ParseFilter maps s onto a Filter. An empty string selects FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterActive, FilterFailed, FilterSuccess:
		return f, nil
	default:
		return "", fmt.Errorf("unknown task filter %q", s)
	}
}

// Matches reports whether a task in state s passes f.
func (f Filter) Matches(s monitoring.TaskState) bool {
	switch f {
	case FilterActive:
		return s.IsActive()
	case FilterFailed:
		return s == monitoring.TaskStateFailure
	case FilterSuccess:
		return s == monitoring.TaskStateSuccess
	case FilterAll:
		return true
	default:
		return false
	}
}

// FilterTasks returns, in their original order, the tasks matching f. The
// result never aliases the input slice.
func FilterTasks(tasks []monitoring.Task, f Filter) []monitoring.Task {
	out := make([]monitoring.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Matches(t.State) {
			out = append(out, t)
		}
	}
	return out
}

// ByQueue returns, in order, the tasks routed to queue.
func ByQueue(tasks []monitoring.Task, queue string) []monitoring.Task {
	out := make([]monitoring.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Queue == queue {
			out = append(out, t)
		}
	}
	return out
}

// Bucket is the display grouping of a task state. Unrecognized states share
// BucketUnknown.
type Bucket string

// BucketUnknown groups every state this client does not recognize.
const BucketUnknown Bucket = "unknown"

// BucketOf returns the display bucket for s.
func BucketOf(s monitoring.TaskState) Bucket {
	if !s.IsKnown() {
		return BucketUnknown
	}
	return Bucket(strings.ToLower(s.String()))
}

// ByState groups tasks by bucket, preserving order within each group.
func ByState(tasks []monitoring.Task) map[Bucket][]monitoring.Task {
	out := make(map[Bucket][]monitoring.Task)
	for _, t := range tasks {
		b := BucketOf(t.State)
		out[b] = append(out[b], t)
	}
	return out
}
