package monitoring

import "maps"

// Stats is the aggregate view of the backend: task counts by state, queue
// lengths and worker liveness totals.
type Stats struct {
	TotalTasks     int
	TasksByState   map[TaskState]int
	QueueLengths   map[string]int
	WorkersOnline  int
	WorkersOffline int
}

// Clone returns a deep copy of s.
func (s Stats) Clone() Stats {
	c := s
	c.TasksByState = maps.Clone(s.TasksByState)
	c.QueueLengths = maps.Clone(s.QueueLengths)
	return c
}
