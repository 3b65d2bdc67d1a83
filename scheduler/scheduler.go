package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownTask is returned by RunNow for a name with no registered task.
var ErrUnknownTask = errors.New("scheduler: unknown task")

const defaultRunTimeout = 30 * time.Second

// Task is one unit of periodic work. The context is cancelled when the run
// times out or the scheduler stops.
type Task func(ctx context.Context) error

// TaskInfo describes a registered task and its last run.
type TaskInfo struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	LastRun   time.Time     `json:"last_run"`
	Runs      int64         `json:"runs"`
	Failures  int64         `json:"failures"`
	LastError string        `json:"last_error,omitempty"`
}

// Scheduler runs named tasks on fixed intervals.
type Scheduler struct {
	mu         sync.Mutex
	tasks      map[string]*entry
	logger     *zap.Logger
	runTimeout time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

type entry struct {
	fn       Task
	interval time.Duration
	stop     chan struct{}
	runMu    sync.Mutex // one run at a time per task

	// guarded by Scheduler.mu
	lastRun  time.Time
	runs     int64
	failures int64
	lastErr  string
}

// New creates a Scheduler whose runs are bounded by a 30s timeout.
func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:      make(map[string]*entry),
		logger:     logger,
		runTimeout: defaultRunTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// WithRunTimeout overrides the per-run timeout.
func (s *Scheduler) WithRunTimeout(d time.Duration) *Scheduler {
	if d > 0 {
		s.runTimeout = d
	}
	return s
}

// Every registers fn to run each interval, replacing any task of the same
// name. Registering after Stop is a no-op.
func (s *Scheduler) Every(name string, interval time.Duration, fn Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	if old, ok := s.tasks[name]; ok {
		close(old.stop)
	}
	e := &entry{fn: fn, interval: interval, stop: make(chan struct{})}
	s.tasks[name] = e

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				_ = s.run(s.ctx, name, e)
			case <-e.stop:
				return
			case <-s.ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

// RunNow runs a registered task on the calling goroutine and returns its
// error. A panicking task is reported as an error.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return ErrUnknownTask
	}
	return s.run(ctx, name, e)
}

func (s *Scheduler) run(parent context.Context, name string, e *entry) (err error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	ctx, cancel := context.WithTimeout(parent, s.runTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: task %s panicked: %v", name, r)
		}
		s.record(name, e, err)
	}()
	return e.fn(ctx)
}

func (s *Scheduler) record(name string, e *entry, err error) {
	s.mu.Lock()
	e.lastRun = time.Now()
	e.runs++
	if err != nil {
		e.failures++
		e.lastErr = err.Error()
	} else {
		e.lastErr = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduler task failed", zap.String("task", name), zap.Error(err))
	}
}

// Stop cancels in-flight runs and waits for every task loop to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Names returns the registered task names, sorted.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tasks returns run statistics for every task, sorted by name.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for name, e := range s.tasks {
		out = append(out, TaskInfo{
			Name:      name,
			Interval:  e.interval,
			LastRun:   e.lastRun,
			Runs:      e.runs,
			Failures:  e.failures,
			LastError: e.lastErr,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
