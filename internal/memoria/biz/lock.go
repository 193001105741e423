package biz

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/memoria/pkg/errors"
	"github.com/kart-io/memoria/pkg/id"
)

// RunLocker 保证同一项目同时只有一个修复运行。
type RunLocker interface {
	// Acquire 获取项目锁，已被占用时返回 ErrRunInProgress。
	Acquire(ctx context.Context, projectID string) (release func(), err error)
}

// LocalRunLocker 进程内的项目锁。
type LocalRunLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalRunLocker 创建进程内锁。
func NewLocalRunLocker() *LocalRunLocker {
	return &LocalRunLocker{held: make(map[string]struct{})}
}

// Acquire 实现 RunLocker。
func (l *LocalRunLocker) Acquire(_ context.Context, projectID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[projectID]; busy {
		return nil, errors.ErrRunInProgress
	}
	l.held[projectID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, projectID)
			l.mu.Unlock()
		})
	}, nil
}

// releaseScript 只有令牌匹配时才删除，避免释放别人在 TTL 过期后拿到的锁。
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript 令牌匹配时重置过期时间。
var renewScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisRunLocker 基于 Redis SET NX PX 的跨实例项目锁，Redis 不可用时退化为进程内锁。
// 持有期间每 ttl/3 续期一次，运行时长不受 ttl 限制；进程崩溃后锁在 ttl 内过期。
type RedisRunLocker struct {
	client     *goredis.Client
	ttl        time.Duration
	renewEvery time.Duration
	prefix     string
	fallback   *LocalRunLocker
}

// NewRedisRunLocker 创建 Redis 锁。
func NewRedisRunLocker(client *goredis.Client, ttl time.Duration) *RedisRunLocker {
	return &RedisRunLocker{
		client:     client,
		ttl:        ttl,
		renewEvery: ttl / 3,
		prefix:     "memoria:run:",
		fallback:   NewLocalRunLocker(),
	}
}

// Acquire 实现 RunLocker。
func (l *RedisRunLocker) Acquire(ctx context.Context, projectID string) (func(), error) {
	key := l.prefix + projectID
	token := id.New()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		logger.Warnw("redis run lock unavailable, using local lock",
			"project_id", projectID,
			"error", err.Error(),
		)
		return l.fallback.Acquire(ctx, projectID)
	}
	if !ok {
		return nil, errors.ErrRunInProgress
	}

	stop, done := make(chan struct{}), make(chan struct{})
	go func() {
		defer close(done)
		l.renew(stop, key, token, projectID)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				logger.Warnw("failed to release redis run lock",
					"project_id", projectID,
					"error", err.Error(),
				)
			}
		})
	}, nil
}

// renew 定期续期直到 stop 关闭；令牌不再匹配时放弃。
func (l *RedisRunLocker) renew(stop <-chan struct{}, key, token, projectID string) {
	if l.renewEvery <= 0 {
		<-stop
		return
	}
	ticker := time.NewTicker(l.renewEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		n, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
		cancel()
		if err != nil {
			logger.Warnw("failed to renew redis run lock",
				"project_id", projectID,
				"error", err.Error(),
			)
			continue
		}
		if n == 0 {
			logger.Warnw("redis run lock lost before release", "project_id", projectID)
			return
		}
	}
}
