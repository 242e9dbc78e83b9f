// Package runtime provides the single process-wide async runtime that
// backs every long-lived operation in the SDK (tor daemon supervision,
// SOCKS tunnels, hidden-service intake, wallet sync). Mobile hosts create
// exactly one Pool per process and hand it to every tor.Daemon / wallet.Wallet
// they construct, mirroring the single lazily-initialized tokio Runtime in
// the original Rust SDK.
package runtime

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool is a bounded goroutine pool. Detached tasks submitted via Go block
// until a slot is free, providing the same backpressure the Rust SDK got
// for free from tokio's worker-thread count.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mtx      sync.Mutex
	canceled bool
}

// defaultWeight sizes the pool at half the available CPUs, floored at 1, so
// a mobile host with a single efficiency core still makes progress.
func defaultWeight() int64 {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return int64(n)
}

// New returns a Pool sized to defaultWeight concurrent tasks. Use NewSized
// to override.
func New() *Pool {
	return NewSized(defaultWeight())
}

// NewSized returns a Pool that runs at most weight tasks concurrently.
func NewSized(weight int64) *Pool {
	if weight < 1 {
		weight = 1
	}
	return &Pool{sem: semaphore.NewWeighted(weight)}
}

// Go submits fn to run on the pool. It blocks the caller until a slot frees
// up or ctx is canceled, mirroring the backpressure of a bounded executor
// rather than silently spawning unbounded goroutines under load.
func (p *Pool) Go(ctx context.Context, fn func(context.Context)) error {
	p.mtx.Lock()
	closed := p.canceled
	p.mtx.Unlock()
	if closed {
		return context.Canceled
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		fn(ctx)
	}()
	return nil
}

// Shutdown marks the pool closed to new work and waits for in-flight tasks
// to finish.
func (p *Pool) Shutdown() {
	p.mtx.Lock()
	p.canceled = true
	p.mtx.Unlock()
	p.wg.Wait()
}
