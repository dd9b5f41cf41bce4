package callback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	var running, peak atomic.Int32
	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)
		err := p.Go(context.Background(), func(context.Context) {
			defer wg.Done()
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
		})
		if err != nil {
			t.Fatalf("Go() error = %v", err)
		}
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
	if err := p.Stop(time.Second); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestPool_SaturatedRespectsContext(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	if err := p.Go(context.Background(), func(context.Context) { <-release }); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Go(ctx, func(context.Context) { t.Error("should not run") })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}

	close(release)
	if err := p.Stop(time.Second); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestPool_StopRefusesWork(t *testing.T) {
	p := NewPool(0)
	if p.Size() != 1 {
		t.Errorf("Size() = %d, want 1", p.Size())
	}
	if err := p.Stop(time.Second); err != nil {
		t.Fatal(err)
	}
	if err := p.Go(context.Background(), func(context.Context) {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("err = %v, want ErrPoolClosed", err)
	}
}

func TestPool_StopTimeout(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	defer close(release)
	_ = p.Go(context.Background(), func(context.Context) { <-release })

	if err := p.Stop(10 * time.Millisecond); !errors.Is(err, ErrStopTimeout) {
		t.Errorf("err = %v, want ErrStopTimeout", err)
	}
}
