package platform

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestForEach_ResultsByIndex(t *testing.T) {
	out := make([]int, 20)
	err := ForEach(context.Background(), NewLimits(4, 0), len(out), func(_ context.Context, i int) error {
		out[i] = i * i
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range out {
		if v != i*i {
			t.Errorf("out[%d] = %d, want %d", i, v, i*i)
		}
	}
}

func TestForEach_RespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- ForEach(context.Background(), Limits{Concurrency: 2}, 6, func(context.Context, int) error {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			inFlight.Add(-1)
			return nil
		})
	}()
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestForEach_FirstErrorCancels(t *testing.T) {
	boom := errors.New("boom")
	var ran atomic.Int32
	err := ForEach(context.Background(), Limits{Concurrency: 1}, 5, func(_ context.Context, i int) error {
		ran.Add(1)
		if i == 1 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if ran.Load() != 2 {
		t.Errorf("ran %d items, want 2 with serial execution", ran.Load())
	}
}

func TestForEach_Zero(t *testing.T) {
	if err := ForEach(context.Background(), Limits{}, 0, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewLimits(t *testing.T) {
	if l := NewLimits(3, 0); l.Limiter != nil {
		t.Error("rps 0 should leave the limiter unset")
	}
	l := NewLimits(0, 5)
	if l.Limiter == nil {
		t.Fatal("expected a limiter")
	}
	if l.Limiter.Burst() != 1 {
		t.Errorf("burst = %d, want 1", l.Limiter.Burst())
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("Wait: %v", err)
	}
}
