package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aidar/scim-provisioning/internal/domain"
)

// releaseScript удаляет ключ только если он все еще принадлежит владельцу
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLocker реализует Locker поверх Redis (SET NX с TTL)
type RedisLocker struct {
	client *redis.Client
	policy RetryPolicy
}

// NewRedisLocker создает новый RedisLocker
func NewRedisLocker(client *redis.Client, policy RetryPolicy) *RedisLocker {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &RedisLocker{client: client, policy: policy}
}

// Acquire захватывает блокировку по ключу с ограниченным повтором.
// Каждая попытка выполняет SET NX; пауза между попытками растет линейно.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Handle, error) {
	token := uuid.NewString()

	for attempt := 1; attempt <= l.policy.MaxAttempts; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return &redisHandle{client: l.client, key: key, token: token}, nil
		}

		if attempt == l.policy.MaxAttempts {
			break
		}
		if err := wait(ctx, time.Duration(attempt)*l.policy.Delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("lock %s: %w", key, domain.ErrLockTimeout)
}

type redisHandle struct {
	client *redis.Client
	key    string
	token  string
}

// Release освобождает блокировку через compare-and-delete скрипт
func (h *redisHandle) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, h.client, []string{h.key}, h.token).Err()
}
