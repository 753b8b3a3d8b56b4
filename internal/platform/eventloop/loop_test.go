package eventloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAfterFunc_FiresOnceWhenDue(t *testing.T) {
	clock := clockwork.NewFakeClock()
	loop := New(clock)

	fired := 0
	timer := loop.AfterFunc(time.Second, func() { fired++ })

	assert.Equal(t, 0, loop.RunDue())
	assert.True(t, timer.Active())

	clock.Advance(time.Second)
	assert.Equal(t, 1, loop.RunDue())
	assert.Equal(t, 1, fired)
	assert.False(t, timer.Active())

	clock.Advance(time.Hour)
	assert.Equal(t, 0, loop.RunDue())
	assert.Equal(t, 1, fired)
}

func TestEvery_ReschedulesAndDropsMissedTicks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	loop := New(clock)

	ticks := 0
	timer := loop.Every(time.Second, func() { ticks++ })

	for iter := 0; iter < 3; iter++ {
		clock.Advance(time.Second)
		loop.RunDue()
	}
	assert.Equal(t, 3, ticks)

	// A long gap delivers a single tick, not a burst.
	clock.Advance(10 * time.Second)
	loop.RunDue()
	assert.Equal(t, 4, ticks)
	assert.True(t, timer.Active())

	assert.True(t, timer.Stop())
	clock.Advance(time.Second)
	loop.RunDue()
	assert.Equal(t, 4, ticks)
}

func TestEvery_PanicsOnNonPositivePeriod(t *testing.T) {
	loop := New(clockwork.NewFakeClock())
	assert.Panics(t, func() { loop.Every(0, func() {}) })
}

func TestTimer_StopIsIdempotentAndNilSafe(t *testing.T) {
	loop := New(clockwork.NewFakeClock())
	timer := loop.AfterFunc(time.Second, func() {})

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	var nilTimer *Timer
	assert.False(t, nilTimer.Stop())
	assert.False(t, nilTimer.Active())
}

func TestRunDue_DeadlineThenArmingOrder(t *testing.T) {
	clock := clockwork.NewFakeClock()
	loop := New(clock)

	var order []string
	loop.AfterFunc(2*time.Second, func() { order = append(order, "late") })
	loop.AfterFunc(time.Second, func() { order = append(order, "first") })
	loop.AfterFunc(time.Second, func() { order = append(order, "second") })

	clock.Advance(2 * time.Second)
	loop.RunDue()

	assert.Equal(t, []string{"first", "second", "late"}, order)
}

func TestRunDue_TimerArmedByHandlerWaitsForNextPass(t *testing.T) {
	clock := clockwork.NewFakeClock()
	loop := New(clock)

	fired := 0
	loop.AfterFunc(time.Second, func() {
		fired++
		loop.AfterFunc(time.Second, func() { fired++ })
	})

	clock.Advance(time.Second)
	loop.RunDue()
	assert.Equal(t, 1, fired)

	clock.Advance(time.Second)
	loop.RunDue()
	assert.Equal(t, 2, fired)
}

func TestDispatch_RecoversPanics(t *testing.T) {
	clock := clockwork.NewFakeClock()
	loop := New(clock)

	after := false
	loop.AfterFunc(time.Second, func() { panic("boom") })
	loop.AfterFunc(time.Second, func() { after = true })

	clock.Advance(time.Second)
	assert.NotPanics(t, func() { loop.RunDue() })
	assert.True(t, after, "handlers after a panic still run")
}

func TestDrain_RunsDueTimersBeforePostedClosure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	loop := New(clock)

	var order []string
	loop.AfterFunc(time.Second, func() { order = append(order, "timer") })
	clock.Advance(time.Second)
	require.True(t, loop.Post(func() { order = append(order, "posted") }))

	assert.Equal(t, 1, loop.Drain())
	assert.Equal(t, []string{"timer", "posted"}, order)
}

func TestRun_ExecutesPostedClosuresAndCall(t *testing.T) {
	loop := New(clockwork.NewRealClock())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	counter := 0
	for iter := 0; iter < 10; iter++ {
		require.True(t, loop.Post(func() { counter++ }))
	}

	err := loop.Call(ctx, func() error {
		if counter != 10 {
			return errors.New("posts not yet applied")
		}
		return nil
	})
	require.NoError(t, err)

	wantErr := errors.New("handler error")
	assert.ErrorIs(t, loop.Call(ctx, func() error { return wantErr }), wantErr)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}

	assert.False(t, loop.Post(func() {}))
	assert.ErrorIs(t, loop.Call(context.Background(), func() error { return nil }), domain.ErrLoopStopped)
}

func TestRun_FiresRealTimers(t *testing.T) {
	loop := New(clockwork.NewRealClock())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	fired := make(chan struct{})
	require.True(t, loop.Post(func() {
		loop.AfterFunc(20*time.Millisecond, func() { close(fired) })
	}))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestCall_ContextCancelled(t *testing.T) {
	loop := New(clockwork.NewFakeClock())
	// Run is never started, so the closure is queued but never executed.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := loop.Call(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
