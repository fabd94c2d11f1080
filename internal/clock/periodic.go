// Package clock implements the kernel's Periodic Runner: fixed-period
// task execution under an advisory priority, with drift absorption and
// running execution-time statistics.
//
// Translated from original_source/include/common/periodic_task.h (a QNX
// pthread-backed C++ base class) into a goroutine-driven runner: a
// std::thread running PeriodicTask::run becomes a goroutine running
// Task.loop, and pthread_setschedparam's priority hint becomes an
// advisory int recorded on the task but never enforced — Go gives no
// portable way to raise a goroutine's scheduling priority, matching
// spec.md §4.1's requirement that correctness never depend on it.
package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// Func is the work a Task performs once per cycle. An error is logged by
// the caller and does not stop the task — a single failing cycle must not
// terminate it (spec.md §4.1 Failure).
type Func func() error

// Task runs fn every period, absorbing overrun drift: if a cycle runs
// long enough that the next scheduled activation has already passed, the
// next cycle starts immediately rather than stacking up lag.
type Task struct {
	name     string
	priority int
	fn       Func
	onError  func(error)

	mu     sync.Mutex
	period time.Duration

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	bestNanos  atomic.Int64
	worstNanos atomic.Int64
}

// New constructs a Task with the given name (for logging), fixed period,
// advisory priority (higher integer is more urgent, per spec.md §5), and
// per-cycle work function. onError, if non-nil, is called with any error
// fn returns; it must not block or panic.
func New(name string, period time.Duration, priority int, fn Func, onError func(error)) *Task {
	if onError == nil {
		onError = func(error) {}
	}
	return &Task{
		name:     name,
		priority: priority,
		fn:       fn,
		onError:  onError,
		period:   period,
	}
}

// Name returns the task's name.
func (t *Task) Name() string { return t.name }

// Priority returns the task's advisory priority.
func (t *Task) Priority() int { return t.priority }

// SetPeriod changes the task's period. The new period takes effect at the
// next scheduled activation, not mid-cycle.
func (t *Task) SetPeriod(p time.Duration) {
	t.mu.Lock()
	t.period = p
	t.mu.Unlock()
}

// Period returns the task's current period.
func (t *Task) Period() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.period
}

// Start spawns the task's execution goroutine. Calling Start on an
// already-running task is a no-op.
func (t *Task) Start() {
	if !t.running.CompareAndSwap(false, true) {
		return
	}
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	go t.loop()
}

// Stop requests cooperative shutdown and blocks until the current cycle
// finishes and the goroutine exits. Calling Stop on a non-running task is
// a no-op.
func (t *Task) Stop() {
	if !t.running.CompareAndSwap(true, false) {
		return
	}
	close(t.stopCh)
	<-t.doneCh
}

// Running reports whether the task's goroutine is active.
func (t *Task) Running() bool {
	return t.running.Load()
}

// Stats returns the best and worst recorded per-cycle execution times
// since the task started.
func (t *Task) Stats() (best, worst time.Duration) {
	return time.Duration(t.bestNanos.Load()), time.Duration(t.worstNanos.Load())
}

func (t *Task) loop() {
	defer close(t.doneCh)

	next := time.Now()
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		start := time.Now()
		if err := t.fn(); err != nil {
			t.onError(err)
		}
		t.recordExecution(time.Since(start))

		next = next.Add(t.Period())
		now := time.Now()
		if next.Before(now) {
			// Overran the period: absorb the drift by starting the next
			// cycle immediately instead of sleeping negative time.
			next = now
			continue
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-t.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (t *Task) recordExecution(d time.Duration) {
	n := d.Nanoseconds()
	for {
		best := t.bestNanos.Load()
		if best != 0 && best <= n {
			break
		}
		if t.bestNanos.CompareAndSwap(best, n) {
			break
		}
	}
	for {
		worst := t.worstNanos.Load()
		if worst >= n {
			break
		}
		if t.worstNanos.CompareAndSwap(worst, n) {
			break
		}
	}
}
