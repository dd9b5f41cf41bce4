package callback

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the work done for callback channels: handshakes and
// invocation handlers. It is owned by one client and shared by all of its
// channels.
type Pool struct {
	size int
	sem  *semaphore.Weighted

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a pool running at most size tasks at once. size below 1
// is treated as 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{size: size, sem: semaphore.NewWeighted(int64(size))}
}

// Size returns the concurrency bound.
func (p *Pool) Size() int {
	return p.size
}

// Go runs fn once a slot is free. It blocks while the pool is saturated and
// returns ctx.Err() if ctx ends first, or ErrPoolClosed after Stop.
func (p *Pool) Go(ctx context.Context, fn func(context.Context)) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return err
	}
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		fn(ctx)
	}()
	return nil
}

// Stop refuses new work and waits up to timeout for running tasks.
func (p *Pool) Stop(timeout time.Duration) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}
