package timeutil

import (
	"sort"
	"sync"
	"time"
)

var _ Provider = (*Mock)(nil)

// Mock is a manually advanced Provider. Callbacks registered with AfterFunc
// run synchronously, in deadline order, from Advance or Set.
type Mock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
}

// NewMock returns a Mock whose clock starts at t.
func NewMock(t time.Time) *Mock { return &Mock{now: t} }

// Now returns the mock's current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Sleep advances the clock by d.
func (m *Mock) Sleep(d time.Duration) { m.Advance(d) }

// AfterFunc schedules f to run once the clock has advanced by d.
func (m *Mock) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &mockTimer{mock: m, deadline: m.now.Add(d), fn: f}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward by d and fires every timer that became due.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()
	m.Set(target)
}

// Set moves the clock to t and fires every timer whose deadline is not after t.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t

	var due []*mockTimer
	pending := m.timers[:0]
	for _, tm := range m.timers {
		if !tm.deadline.After(t) {
			due = append(due, tm)
			continue
		}
		pending = append(pending, tm)
	}
	m.timers = pending
	m.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, tm := range due {
		tm.fn()
	}
}

// PendingTimers reports how many scheduled callbacks have not yet fired.
func (m *Mock) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

type mockTimer struct {
	mock     *Mock
	deadline time.Time
	fn       func()
}

func (t *mockTimer) Stop() bool {
	t.mock.mu.Lock()
	defer t.mock.mu.Unlock()

	for i, tm := range t.mock.timers {
		if tm == t {
			t.mock.timers = append(t.mock.timers[:i], t.mock.timers[i+1:]...)
			return true
		}
	}
	return false
}
