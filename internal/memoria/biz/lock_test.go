package biz

import (
	"context"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/memoria/pkg/errors"
)

func TestLocalRunLocker(t *testing.T) {
	l := NewLocalRunLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "p1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "p1")
	assert.ErrorIs(t, err, errors.ErrRunInProgress)

	other, err := l.Acquire(ctx, "p2")
	require.NoError(t, err, "different projects run concurrently")
	other()

	release()
	release() // 重复释放无副作用

	again, err := l.Acquire(ctx, "p1")
	require.NoError(t, err)
	again()
}

func TestRedisRunLockerFallsBackWhenUnavailable(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisRunLocker(client, time.Minute)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "p1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "p1")
	assert.ErrorIs(t, err, errors.ErrRunInProgress)

	release()
	_, err = l.Acquire(ctx, "p1")
	assert.NoError(t, err)
}

// scriptedRedis 在 hook 中直接应答命令，不建立连接。
type scriptedRedis struct {
	mu       sync.Mutex
	renewals int
	releases int
	held     bool
}

func (r *scriptedRedis) DialHook(next goredis.DialHook) goredis.DialHook { return next }

func (r *scriptedRedis) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return next
}

func (r *scriptedRedis) ProcessHook(goredis.ProcessHook) goredis.ProcessHook {
	return func(_ context.Context, cmd goredis.Cmder) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		switch c := cmd.(type) {
		case *goredis.BoolCmd:
			c.SetVal(!r.held)
			r.held = true
		case *goredis.Cmd:
			var n int64
			if r.held {
				n = 1
			}
			if c.Args()[1] == renewScript.Hash() {
				r.renewals++
			} else {
				r.releases++
				r.held = false
			}
			c.SetVal(n)
		}
		return nil
	}
}

func (r *scriptedRedis) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renewals, r.releases
}

func newScriptedLocker(t *testing.T) (*RedisRunLocker, *scriptedRedis) {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })
	fake := &scriptedRedis{}
	client.AddHook(fake)

	l := NewRedisRunLocker(client, time.Minute)
	l.renewEvery = 10 * time.Millisecond
	return l, fake
}

func TestRedisRunLockerRenewsWhileHeld(t *testing.T) {
	l, fake := newScriptedLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "p1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "p1")
	assert.ErrorIs(t, err, errors.ErrRunInProgress)

	assert.Eventually(t, func() bool {
		n, _ := fake.counts()
		return n >= 2
	}, time.Second, 5*time.Millisecond)

	release()
	renewals, releases := fake.counts()
	assert.Equal(t, 1, releases)

	time.Sleep(50 * time.Millisecond)
	after, _ := fake.counts()
	assert.Equal(t, renewals, after, "renewal stops after release")
}

func TestRedisRunLockerStopsRenewingLostLock(t *testing.T) {
	l, fake := newScriptedLocker(t)

	release, err := l.Acquire(context.Background(), "p1")
	require.NoError(t, err)
	defer release()

	fake.mu.Lock()
	fake.held = false
	fake.mu.Unlock()

	assert.Eventually(t, func() bool {
		n, _ := fake.counts()
		return n >= 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	before, _ := fake.counts()
	time.Sleep(50 * time.Millisecond)
	after, _ := fake.counts()
	assert.Equal(t, before, after, "no renewal once the token no longer matches")
}
