// Package eventloop provides the single goroutine every runtime component runs on.
//
// Socket readers, playback waiters and HTTP handlers never touch component state directly;
// they Post closures here. Timers are loop-owned handles fired on the same goroutine, so a
// handler always runs to completion before the next one starts and no component needs a mutex.
package eventloop

import (
	"container/heap"
	"context"
	"log/slog"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/metrics"
	"github.com/jonboulle/clockwork"
)

const (
	inboxSize = 256
	idleWake  = time.Hour
)

// Loop serializes handlers and owns every timer of the runtime.
type Loop struct {
	clock  clockwork.Clock
	inbox  chan func()
	done   chan struct{}
	timers timerHeap
	seq    uint64
}

// New creates a loop driven by clock. Call Run exactly once.
func New(clock clockwork.Clock) *Loop {
	return &Loop{
		clock: clock,
		inbox: make(chan func(), inboxSize),
		done:  make(chan struct{}),
	}
}

// Clock returns the loop's clock.
func (l *Loop) Clock() clockwork.Clock {
	return l.clock
}

// Now returns the loop's current time.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn to run on the loop. Safe from any goroutine. Blocks while the inbox
// is full and returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.inbox <- fn:
		metrics.LoopInboxDepth.Set(float64(len(l.inbox)))
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for its result.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	if !l.Post(func() { errCh <- fn() }) {
		return domain.ErrLoopStopped
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-errCh:
			return err
		default:
			return domain.ErrLoopStopped
		}
	}
}

// AfterFunc arms a one-shot timer. Loop goroutine only.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{loop: l, when: l.clock.Now().Add(d), fn: fn}
	l.push(t)
	return t
}

// Every arms a periodic timer whose first firing is one period from now. Like a
// time.Ticker it drops ticks it could not deliver in time. Loop goroutine only.
func (l *Loop) Every(period time.Duration, fn func()) *Timer {
	if period <= 0 {
		panic("eventloop: non-positive period for Every")
	}
	t := &Timer{loop: l, when: l.clock.Now().Add(period), period: period, fn: fn}
	l.push(t)
	return t
}

// Run processes posted closures and timers until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	wake := l.clock.NewTimer(idleWake)
	defer wake.Stop()

	slog.Debug("Event loop started")
	for {
		l.RunDue()
		l.rearm(wake)

		select {
		case <-ctx.Done():
			l.stopTimers()
			slog.Debug("Event loop stopped", "reason", ctx.Err())
			return ctx.Err()
		case fn := <-l.inbox:
			metrics.LoopInboxDepth.Set(float64(len(l.inbox)))
			// Timers that came due before this closure was posted fire first.
			l.RunDue()
			l.dispatch("posted", fn)
		case <-wake.Chan():
		}
	}
}

// RunDue fires every timer whose deadline has passed, in deadline order, and returns
// how many fired. Run calls it on every iteration; tests call it after advancing a
// fake clock.
func (l *Loop) RunDue() int {
	now := l.clock.Now()
	fired := 0
	for {
		t := l.timers.peek()
		if t == nil || t.when.After(now) {
			break
		}
		heap.Pop(&l.timers)
		if t.period > 0 {
			t.when = t.when.Add(t.period)
			if !t.when.After(now) {
				t.when = now.Add(t.period)
			}
			l.push(t)
		}
		fired++
		l.dispatch("timer", t.fn)
	}
	metrics.LoopTimersActive.Set(float64(len(l.timers)))
	return fired
}

// Drain runs every closure already queued without blocking. Only valid while Run is
// not active; tests use it to deliver posts from helper goroutines.
func (l *Loop) Drain() int {
	n := 0
	for {
		select {
		case fn := <-l.inbox:
			l.RunDue()
			l.dispatch("posted", fn)
			n++
		default:
			return n
		}
	}
}

func (l *Loop) dispatch(origin string, fn func()) {
	start := l.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event loop handler panic recovered", "origin", origin, "panic", r)
			metrics.LoopPanicsTotal.Inc()
		}
		metrics.LoopHandlerDuration.Observe(l.clock.Since(start).Seconds())
	}()

	metrics.LoopHandlersTotal.WithLabelValues(origin).Inc()
	fn()
}

func (l *Loop) rearm(wake clockwork.Timer) {
	d := idleWake
	if next := l.timers.peek(); next != nil {
		d = max(next.when.Sub(l.clock.Now()), 0)
	}
	wake.Reset(d)
}

func (l *Loop) push(t *Timer) {
	l.seq++
	t.seq = l.seq
	heap.Push(&l.timers, t)
}

func (l *Loop) stopTimers() {
	for _, t := range l.timers {
		t.index = -1
	}
	l.timers = nil
	metrics.LoopTimersActive.Set(0)
}
