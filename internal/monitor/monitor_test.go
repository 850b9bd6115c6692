package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSampler struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSampler) Sample(ctx context.Context) (float64, float64, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return 0, 0, f.err
	}
	return float64(n * 10), 50, nil
}

func TestMonitorEmitsSamplesUntilStopped(t *testing.T) {
	sampler := &fakeSampler{}
	m := New(sampler, 5*time.Millisecond, nil)

	var mu sync.Mutex
	var samples []Sample
	stop := m.Start(context.Background(), func(s Sample) {
		mu.Lock()
		samples = append(samples, s)
		mu.Unlock()
	})

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(samples)
		mu.Unlock()
		if n >= 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	stop()

	mu.Lock()
	got := len(samples)
	first := samples[0]
	mu.Unlock()
	if got < 3 {
		t.Fatalf("expected at least 3 samples, got %d", got)
	}
	if first.CPUPercent != 10 || first.MemoryPercent != 50 {
		t.Errorf("unexpected first sample: %+v", first)
	}
	if first.Elapsed <= 0 {
		t.Errorf("sample should carry elapsed time")
	}

	// No samples after stop returns.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	after := len(samples)
	mu.Unlock()
	if after != got {
		t.Errorf("monitor kept sampling after stop: %d -> %d", got, after)
	}
}

func TestMonitorStopsWithParentContext(t *testing.T) {
	m := New(&fakeSampler{}, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stop := m.Start(ctx, nil)
	cancel()

	finished := make(chan struct{})
	go func() {
		stop()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("stop did not return after context cancellation")
	}
}

func TestMonitorSkipsFailedSamples(t *testing.T) {
	sampler := &fakeSampler{err: errors.New("no /proc")}
	m := New(sampler, 2*time.Millisecond, nil)

	var emitted atomic.Int32
	stop := m.Start(context.Background(), func(Sample) { emitted.Add(1) })
	time.Sleep(20 * time.Millisecond)
	stop()

	if sampler.calls.Load() == 0 {
		t.Fatal("sampler was never called")
	}
	if emitted.Load() != 0 {
		t.Errorf("failed samples should not be emitted, got %d", emitted.Load())
	}
}
