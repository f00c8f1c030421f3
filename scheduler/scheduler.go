// Package scheduler provides the timing primitives used by the detection loop:
// cancellable repeating tasks and a refresh queue whose callbacks run in the
// order they were issued, followed by the registered paint hooks.
package scheduler

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Task is a repeating job created by Every.
type Task struct {
	stop chan struct{}
	once sync.Once
}

// NewTask returns a task that is not attached to any timer. It lets other
// Scheduler implementations hand out cancellable tasks.
func NewTask() *Task {
	return &Task{stop: make(chan struct{})}
}

// Stop cancels the task. It is safe to call more than once.
func (t *Task) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// Stopped reports whether the task has been cancelled.
func (t *Task) Stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

// Scheduler runs repeating tasks and refresh callbacks on an injectable clock.
type Scheduler struct {
	clock   clock.Clock
	refresh *clock.Ticker

	mu    sync.Mutex
	queue []func()
	paint []func()

	wake      chan struct{}
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a scheduler. A positive refresh interval batches the queued
// callbacks on every refresh tick, mimicking a display refresh rate; a zero
// interval flushes the queue as soon as something is enqueued.
func New(c clock.Clock, refresh time.Duration) *Scheduler {
	if c == nil {
		c = clock.New()
	}
	s := &Scheduler{
		clock: c,
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
	}
	if refresh > 0 {
		s.refresh = c.Ticker(refresh)
	}

	s.wg.Add(1)
	go s.loop()

	return s
}

// Every invokes fn once per interval until the returned task is cancelled.
// Each invocation runs on its own goroutine, so a slow fn does not delay the
// ticks that follow; callers that need serialization must guard fn themselves.
func (s *Scheduler) Every(interval time.Duration, fn func()) *Task {
	t := NewTask()
	ticker := s.clock.Ticker(interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-t.stop:
				return
			case <-s.quit:
				return
			case <-ticker.C:
				// A cancellation racing with a tick always wins.
				if t.Stopped() {
					return
				}
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					fn()
				}()
			}
		}
	}()

	return t
}

// Cancel stops the task. A nil task is ignored.
func (s *Scheduler) Cancel(t *Task) {
	if t == nil {
		return
	}
	t.Stop()
}

// NextRefresh enqueues fn to run at the next refresh opportunity.
func (s *Scheduler) NextRefresh(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// OnPaint registers a hook invoked after every non-empty batch of refresh callbacks.
func (s *Scheduler) OnPaint(fn func()) {
	s.mu.Lock()
	s.paint = append(s.paint, fn)
	s.mu.Unlock()
}

// Pending returns the number of refresh callbacks waiting to run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops every task and the refresh loop, and waits for running callbacks to return.
// Callbacks still queued are dropped.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		if s.refresh != nil {
			s.refresh.Stop()
		}
	})
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	var tick <-chan time.Time
	if s.refresh != nil {
		tick = s.refresh.C
	}

	for {
		select {
		case <-s.quit:
			return
		case <-tick:
			s.flush()
		case <-s.wake:
			if tick == nil {
				s.flush()
			}
		}
	}
}

func (s *Scheduler) flush() {
	s.mu.Lock()
	batch := s.queue
	s.queue = nil
	paint := append([]func(){}, s.paint...)
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	for _, fn := range batch {
		fn()
	}
	for _, fn := range paint {
		fn()
	}
}
