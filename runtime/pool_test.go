package runtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedWork(t *testing.T) {
	p := NewSized(2)
	var done int32

	for i := 0; i < 5; i++ {
		err := p.Go(context.Background(), func(context.Context) {
			atomic.AddInt32(&done, 1)
		})
		require.NoError(t, err)
	}

	p.Shutdown()
	require.EqualValues(t, 5, atomic.LoadInt32(&done))
}

func TestPoolRespectsWeightLimit(t *testing.T) {
	p := NewSized(1)
	var concurrent int32
	var maxConcurrent int32

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	submitted := make(chan error, 2)

	// Go blocks its caller until a slot is free, so each submission runs
	// on its own goroutine; the second one stays blocked until the first
	// task is released.
	for i := 0; i < 2; i++ {
		go func() {
			submitted <- p.Go(context.Background(), func(context.Context) {
				n := atomic.AddInt32(&concurrent, 1)
				for {
					old := atomic.LoadInt32(&maxConcurrent)
					if n <= old || atomic.CompareAndSwapInt32(&maxConcurrent, old, n) {
						break
					}
				}
				started <- struct{}{}
				<-release
				atomic.AddInt32(&concurrent, -1)
			})
		}()
	}

	<-started
	select {
	case <-started:
		t.Fatal("second task started before first released, weight=1 not enforced")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	for i := 0; i < 2; i++ {
		require.NoError(t, <-submitted)
	}
	p.Shutdown()
	require.EqualValues(t, 1, atomic.LoadInt32(&maxConcurrent))
}

func TestPoolShutdownRejectsNewWork(t *testing.T) {
	p := New()
	p.Shutdown()

	err := p.Go(context.Background(), func(context.Context) {})
	require.ErrorIs(t, err, context.Canceled)
}
