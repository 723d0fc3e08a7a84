package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"cloudbox/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MemoryEntryLocker hands out one mutex per key. It only serializes callers
// inside a single process.
type MemoryEntryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewMemoryEntryLocker() *MemoryEntryLocker {
	return &MemoryEntryLocker{locks: make(map[string]*keyLock)}
}

func (l *MemoryEntryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, fmt.Errorf("%w: waiting for lock on %s: %v", models.ErrUnavailable, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(key, kl)
		})
	}, nil
}

func (l *MemoryEntryLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// unlockScript deletes the key only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisEntryLocker is a SET NX PX lock shared by every instance pointed at
// the same Redis.
type RedisEntryLocker struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewRedisEntryLocker(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisEntryLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisEntryLocker{
		client:     client,
		prefix:     "cloudbox:lock:",
		ttl:        ttl,
		retryDelay: 25 * time.Millisecond,
		logger:     logger,
	}
}

func (l *RedisEntryLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := make([]byte, 16)
	if _, err := rand.Read(token); err != nil {
		return nil, fmt.Errorf("failed to generate lock token: %w", err)
	}
	value := hex.EncodeToString(token)
	redisKey := l.prefix + key

	for {
		ok, err := l.client.SetNX(ctx, redisKey, value, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: acquiring lock %s: %v", models.ErrUnavailable, key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: waiting for lock on %s: %v", models.ErrUnavailable, key, ctx.Err())
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(redisKey, value) })
	}, nil
}

// release drops the key if it still holds value. A failed release leaves the
// key to expire after ttl.
func (l *RedisEntryLocker) release(redisKey, value string) {
	// The caller's context may already be done; release on a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := unlockScript.Run(ctx, l.client, []string{redisKey}, value).Err(); err != nil {
		l.logger.Warn("failed to release entry lock",
			zap.String("key", redisKey),
			zap.Duration("expires_in", l.ttl),
			zap.Error(err))
	}
}
