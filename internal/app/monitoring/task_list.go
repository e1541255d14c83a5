package monitoring

import (
	"container/list"

	"github.com/ahrav/taskpulse/internal/domain/monitoring"
)

// DefaultTaskCapacity is the number of tasks retained when no capacity is
// configured.
const DefaultTaskCapacity = 100

// taskList is a bounded, ordered map of tasks keyed by id. The front of the
// order is the most recently inserted task. Replacing an existing id keeps its
// position; inserting a new id pushes it to the front and evicts from the back
// until the list is within capacity.
//
// Invariant: len(index) == order.Len() <= capacity.
type taskList struct {
	capacity int
	order    *list.List // of monitoring.Task
	index    map[string]*list.Element
}

func newTaskList(capacity int) *taskList {
	if capacity < 1 {
		capacity = 1
	}
	return &taskList{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

// upsert replaces the task with the same id in place, or inserts it at the
// front. It returns the ids evicted to restore capacity.
func (l *taskList) upsert(t monitoring.Task) []string {
	if el, ok := l.index[t.ID]; ok {
		el.Value = t
		return nil
	}

	l.index[t.ID] = l.order.PushFront(t)
	return l.evict()
}

// replace discards the current contents and loads tasks in the given order,
// tasks[0] being the most recent. A repeated id keeps its last occurrence.
func (l *taskList) replace(tasks []monitoring.Task) {
	l.order.Init()
	clear(l.index)

	for _, t := range tasks {
		if el, ok := l.index[t.ID]; ok {
			el.Value = t
			continue
		}
		l.index[t.ID] = l.order.PushBack(t)
	}
	l.evict()
}

func (l *taskList) evict() []string {
	var evicted []string
	for l.order.Len() > l.capacity {
		back := l.order.Back()
		id := back.Value.(monitoring.Task).ID
		l.order.Remove(back)
		delete(l.index, id)
		evicted = append(evicted, id)
	}
	return evicted
}

func (l *taskList) get(id string) (monitoring.Task, bool) {
	el, ok := l.index[id]
	if !ok {
		return monitoring.Task{}, false
	}
	return el.Value.(monitoring.Task).Clone(), true
}

func (l *taskList) len() int { return l.order.Len() }

// snapshot returns deep copies of the tasks, most recent first.
func (l *taskList) snapshot() []monitoring.Task {
	out := make([]monitoring.Task, 0, l.order.Len())
	for el := l.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(monitoring.Task).Clone())
	}
	return out
}
