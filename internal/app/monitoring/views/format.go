package views

import (
	"fmt"
	"time"

	"github.com/ahrav/taskpulse/internal/domain/monitoring"
)

// Placeholder is rendered for absent values.
const Placeholder = "-"

// TimestampLayout is the layout used by FormatTimestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatDuration renders d for display: milliseconds below one second,
// fractional seconds below a minute, then minutes and hours.
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return Placeholder
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatTimestamp renders t in UTC, or Placeholder when t is nil.
func FormatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return Placeholder
	}
	return t.UTC().Format(TimestampLayout)
}

// TaskRow is a display-ready task.
type TaskRow struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	State    string `json:"state" yaml:"state"`
	Bucket   Bucket `json:"bucket" yaml:"bucket"`
	Queue    string `json:"queue" yaml:"queue"`
	Worker   string `json:"worker" yaml:"worker"`
	Received string `json:"received" yaml:"received"`
	Started  string `json:"started" yaml:"started"`
	Runtime  string `json:"runtime" yaml:"runtime"`
	Retries  int    `json:"retries" yaml:"retries"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// TaskRows converts tasks to display rows, preserving order.
func TaskRows(tasks []monitoring.Task) []TaskRow {
	rows := make([]TaskRow, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, TaskRow{
			ID:       t.ID,
			Name:     orPlaceholder(t.Name),
			State:    orPlaceholder(t.State.String()),
			Bucket:   BucketOf(t.State),
			Queue:    orPlaceholder(t.Queue),
			Worker:   orPlaceholder(t.Worker),
			Received: FormatTimestamp(t.Received),
			Started:  FormatTimestamp(t.Started),
			Runtime:  FormatDuration(t.Runtime),
			Retries:  t.Retries,
			Error:    t.Exception,
		})
	}
	return rows
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}
