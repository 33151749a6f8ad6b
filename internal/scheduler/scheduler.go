package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const defaultGranularity = 30 * time.Second

// Loop владеет набором задач и будит их на фиксированной гранулярности.
// Точность расписания — best effort: для часовых/дневных интервалов этого
// достаточно.
type Loop struct {
	granularity time.Duration
	stopTimeout time.Duration

	mu      sync.Mutex
	tasks   []*Task
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewLoop() *Loop {
	return &Loop{
		granularity: defaultGranularity,
		stopTimeout: 5 * time.Second,
	}
}

func (l *Loop) WithGranularity(d time.Duration) *Loop {
	if d > 0 {
		l.granularity = d
	}
	return l
}

func (l *Loop) Add(t *Task) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = append(l.tasks, t)
	slog.Info("task registered", "task", t.name, "interval", t.interval.String())
}

func (l *Loop) Find(name string) *Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.tasks {
		if t.name == name {
			return t
		}
	}
	return nil
}

// Start запускает цикл. Повторный Start — no-op с предупреждением.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		slog.Warn("scheduler already running")
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	l.started = true
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(loopCtx)
	slog.Info("scheduler started", "tasks", len(l.tasks), "granularity", l.granularity.String())
}

// Stop останавливает цикл и ждёт его выхода не дольше stopTimeout.
// Задачи, выполняющиеся в момент остановки, доработают до конца.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return nil
	}
	l.started = false
	cancel := l.cancel
	done := l.done
	l.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(l.stopTimeout):
		return errors.New("scheduler loop did not exit in time")
	}
	slog.Info("scheduler stopped")
	return nil
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(l.granularity)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx, time.Now().UTC())
		}
	}
}

// tick выполняется только из run: проверка due и claim для одной задачи не
// гонятся между собой.
func (l *Loop) tick(ctx context.Context, now time.Time) {
	l.mu.Lock()
	tasks := make([]*Task, len(l.tasks))
	copy(tasks, l.tasks)
	l.mu.Unlock()

	for _, t := range tasks {
		if !t.due(now) {
			continue
		}
		if !t.claim(now) {
			continue
		}
		go l.execute(ctx, t)
	}
}

// execute is the dispatch boundary: an error (or panic) inside one task
// never reaches the loop or other tasks.
func (l *Loop) execute(ctx context.Context, t *Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("task panicked", "task", t.name, "panic", r)
		}
		t.finish(time.Now().UTC())
	}()

	slog.Info("task started", "task", t.name)
	startedAt := time.Now()
	if err := t.fn(ctx); err != nil {
		slog.Error("task failed", "task", t.name, "error", err.Error())
		return
	}
	slog.Info("task completed", "task", t.name, "took", time.Since(startedAt).String())
}

// RunNow запускает задачу вне расписания, с тем же guard-ом running.
func (l *Loop) RunNow(ctx context.Context, name string) bool {
	t := l.Find(name)
	if t == nil {
		return false
	}
	if !t.claim(time.Now().UTC()) {
		return false
	}
	go l.execute(ctx, t)
	return true
}

type Status struct {
	Running      bool         `json:"running"`
	TotalTasks   int          `json:"totalTasks"`
	EnabledTasks int          `json:"enabledTasks"`
	RunningTasks int          `json:"runningTasks"`
	Tasks        []TaskStatus `json:"tasks"`
}

func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := Status{
		Running:    l.started,
		TotalTasks: len(l.tasks),
		Tasks:      make([]TaskStatus, 0, len(l.tasks)),
	}
	for _, t := range l.tasks {
		ts := t.status()
		if ts.Enabled {
			st.EnabledTasks++
		}
		if ts.Running {
			st.RunningTasks++
		}
		st.Tasks = append(st.Tasks, ts)
	}
	return st
}
