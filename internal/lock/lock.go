// Package lock предоставляет скоупированную эксклюзивную блокировку с
// ограниченным повтором. Редис-реализация используется в продакшене,
// in-memory реализация с той же семантикой — в тестах.
package lock

import (
	"context"
	"time"
)

// Handle представляет захваченную блокировку
type Handle interface {
	// Release освобождает блокировку. Чужая или истекшая блокировка
	// не освобождается (сравнение fencing-токена).
	Release(ctx context.Context) error
}

// Locker предоставляет захват эксклюзивной блокировки по ключу.
// При исчерпании бюджета повторов возвращается domain.ErrLockTimeout.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Handle, error)
}

// RetryPolicy задает бюджет повторов захвата блокировки
type RetryPolicy struct {
	MaxAttempts int           // Максимум попыток захвата
	Delay       time.Duration // Пауза между попытками, растет линейно
}

// DefaultRetryPolicy возвращает политику по умолчанию: до 10 попыток
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 10, Delay: 100 * time.Millisecond}
}

// wait выдерживает паузу перед следующей попыткой с учетом отмены контекста
func wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
