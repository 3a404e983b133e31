package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWait_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Wait(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestWait_ZeroDuration(t *testing.T) {
	if err := Wait(context.Background(), 0); err != nil {
		t.Errorf("Wait(0) error = %v", err)
	}
}

func TestTickerLoop_RunOnStart(t *testing.T) {
	var ticks atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = TickerLoop(ctx, TickerConfig{
			Name:       "test",
			Interval:   time.Hour,
			RunOnStart: true,
			OnTick: func(context.Context) {
				ticks.Add(1)
				cancel()
			},
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ticker loop did not exit")
	}

	if got := ticks.Load(); got != 1 {
		t.Errorf("ticks = %d, want 1", got)
	}
}

func TestSignal_RaiseCoalesces(t *testing.T) {
	s := NewSignal()

	// A burst of raises must wake the listener exactly once.
	s.Raise()
	s.Raise()
	s.Raise()

	select {
	case <-s:
	default:
		t.Fatal("signal not raised")
	}

	select {
	case <-s:
		t.Fatal("signal raised more than once")
	default:
	}
}

func TestSignalLoop_WakesOnRaise(t *testing.T) {
	s := NewSignal()

	var calls atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = SignalLoop(ctx, SignalConfig{
			Name:   "test",
			Signal: s,
			OnSignal: func(context.Context) {
				calls.Add(1)
				cancel()
			},
		})
	}()

	s.Raise()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("signal loop did not exit")
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}
