package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolSubmit(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 10, ExpiryDuration: 5 * time.Second})
	require.NoError(t, err)
	defer func() { _ = p.Release(time.Second) }()

	var counter atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(100), counter.Load())
	assert.Equal(t, "test", p.Name())
	assert.Equal(t, 10, p.Cap())
	assert.Equal(t, int64(100), p.Stats().Submitted)
}

func TestRunPoolRejectsWhenFull(t *testing.T) {
	p, err := NewPool("runs", RunPoolConfig(1))
	require.NoError(t, err)
	defer func() { _ = p.Release(time.Second) }()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		close(started)
		<-block
	}))
	<-started

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolOverload)
	assert.Equal(t, int64(1), p.Stats().Rejected)
	close(block)
}

func TestSubmitWithCancelledContext(t *testing.T) {
	p, err := NewPool("test", nil)
	require.NoError(t, err)
	defer func() { _ = p.Release(time.Second) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.SubmitWithContext(ctx, func() {}), context.Canceled)
}

func TestPanicIsCounted(t *testing.T) {
	done := make(chan struct{})
	p, err := NewPool("test", &Config{
		Capacity:     1,
		PanicHandler: func(interface{}) { close(done) },
	})
	require.NoError(t, err)
	defer func() { _ = p.Release(time.Second) }()

	require.NoError(t, p.Submit(func() { panic("boom") }))
	<-done
	assert.Equal(t, int64(1), p.Stats().Panics)
}

func TestReleasedPoolRejects(t *testing.T) {
	p, err := NewPool("test", nil)
	require.NoError(t, err)
	require.NoError(t, p.Release(time.Second))
	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}
