// Package lock содержит краткоживущие блокировки по ключу на Redis.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "bundlemart:lock:"

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker выдаёт блокировки с TTL через SET NX.
type RedisLocker struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisLocker создаёт RedisLocker. При ttl <= 0 блокировка живёт 30 секунд.
func NewRedisLocker(client *goredis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// TryLock пытается захватить блокировку key. Если она занята, возвращает ok == false.
// Полученную функцию release нужно вызвать после завершения работы.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	if l.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	if key == "" {
		return nil, false, fmt.Errorf("lock key is required")
	}

	token := uuid.NewString()
	fullKey := keyPrefix + key

	ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Отдельный контекст: запрос мог быть уже отменён
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err()
	}

	return release, true, nil
}
