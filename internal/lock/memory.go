package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aidar/scim-provisioning/internal/domain"
)

// MemoryLocker реализует Locker в памяти процесса.
// Семантика повторов и истечения TTL совпадает с редис-реализацией.
type MemoryLocker struct {
	mu     sync.Mutex
	held   map[string]memoryEntry
	policy RetryPolicy
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// NewMemoryLocker создает новый MemoryLocker
func NewMemoryLocker(policy RetryPolicy) *MemoryLocker {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &MemoryLocker{held: make(map[string]memoryEntry), policy: policy}
}

// Acquire захватывает блокировку по ключу с ограниченным повтором
func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Handle, error) {
	token := uuid.NewString()

	for attempt := 1; attempt <= l.policy.MaxAttempts; attempt++ {
		if l.tryAcquire(key, token, ttl) {
			return &memoryHandle{locker: l, key: key, token: token}, nil
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

// tryAcquire выполняет одну попытку захвата, занимая просроченные ключи
func (l *MemoryLocker) tryAcquire(key, token string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, held := l.held[key]
	if held && time.Now().Before(entry.expiresAt) {
		return false
	}

	l.held[key] = memoryEntry{token: token, expiresAt: time.Now().Add(ttl)}
	return true
}

type memoryHandle struct {
	locker *MemoryLocker
	key    string
	token  string
}

// Release освобождает блокировку, если она все еще принадлежит владельцу
func (h *memoryHandle) Release(context.Context) error {
	h.locker.mu.Lock()
	defer h.locker.mu.Unlock()

	if entry, held := h.locker.held[h.key]; held && entry.token == h.token {
		delete(h.locker.held, h.key)
	}
	return nil
}
