package views

import "github.com/ahrav/taskpulse/internal/domain/monitoring"

// ComputeStats derives the aggregate statistics from the snapshot's
// collections, ignoring the backend-reported stats it carries.
func ComputeStats(snap monitoring.Snapshot) monitoring.Stats {
	stats := monitoring.Stats{
		TotalTasks:   len(snap.Tasks),
		TasksByState: make(map[monitoring.TaskState]int),
		QueueLengths: make(map[string]int, len(snap.Queues)),
	}
	for _, t := range snap.Tasks {
		stats.TasksByState[t.State]++
	}
	for _, q := range snap.Queues {
		stats.QueueLengths[q.Name] = q.Messages
	}
	for _, w := range snap.Workers {
		switch w.Status {
		case monitoring.WorkerStatusOnline:
			stats.WorkersOnline++
		case monitoring.WorkerStatusOffline:
			stats.WorkersOffline++
		}
	}
	return stats
}
