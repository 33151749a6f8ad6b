package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Task — именованная периодическая задача. Поле running служит только
// защитой от параллельного запуска, очереди пропущенных тиков нет.
type Task struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error

	enabled atomic.Bool
	running atomic.Bool

	mu      sync.Mutex
	lastRun time.Time
	nextRun time.Time
}

func NewTask(name string, interval time.Duration, fn func(ctx context.Context) error) *Task {
	t := &Task{
		name:     name,
		interval: interval,
		fn:       fn,
		nextRun:  time.Now().UTC(),
	}
	t.enabled.Store(true)
	return t
}

func (t *Task) Name() string { return t.name }

func (t *Task) Enable()  { t.enabled.Store(true) }
func (t *Task) Disable() { t.enabled.Store(false) }

// due reports whether the task should fire at now. The loop is the only
// caller, so checking running here and claiming it via claim below is safe.
func (t *Task) due(now time.Time) bool {
	if !t.enabled.Load() || t.running.Load() {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return !now.Before(t.nextRun)
}

// claim atomically flips the task to running. Returns false if a previous
// execution is still in flight.
func (t *Task) claim(now time.Time) bool {
	if !t.running.CompareAndSwap(false, true) {
		return false
	}
	t.mu.Lock()
	t.lastRun = now
	t.mu.Unlock()
	return true
}

// finish releases the running guard and schedules the next run relative to
// completion time, so a slow task pushes its own cadence back instead of
// burst-catching-up.
func (t *Task) finish(now time.Time) {
	t.mu.Lock()
	t.nextRun = now.Add(t.interval)
	t.mu.Unlock()
	t.running.Store(false)
}

type TaskStatus struct {
	Name     string     `json:"name"`
	Interval string     `json:"interval"`
	Enabled  bool       `json:"enabled"`
	Running  bool       `json:"running"`
	LastRun  *time.Time `json:"lastRun,omitempty"`
	NextRun  time.Time  `json:"nextRun"`
}

func (t *Task) status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := TaskStatus{
		Name:     t.name,
		Interval: t.interval.String(),
		Enabled:  t.enabled.Load(),
		Running:  t.running.Load(),
		NextRun:  t.nextRun,
	}
	if !t.lastRun.IsZero() {
		lr := t.lastRun
		st.LastRun = &lr
	}
	return st
}
