// Package reservation serializes booking creation per (date, slot).
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another request holds the slot lock.
var ErrHeld = errors.New("reservation: slot lock is held")

// Locker guards the re-check + insert of a booking for one slot.
type Locker interface {
	// Acquire returns a release func, or ErrHeld if the slot is being booked concurrently.
	Acquire(ctx context.Context, date, slot string) (release func(), err error)
}

// NoopLocker keeps the default best-effort behaviour: no locking at all.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string, string) (func(), error) {
	return func() {}, nil
}

// Удаляем ключ, только если он всё ещё наш.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker: SET NX PX с токеном владельца.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl, prefix: "slot_lock:"}
}

func (l *RedisLocker) key(date, slot string) string {
	return l.prefix + date + "T" + slot
}

func (l *RedisLocker) Acquire(ctx context.Context, date, slot string) (func(), error) {
	key := l.key(date, slot)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("reservation: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	release := func() {
		// Отпускаем даже если запрос уже отменён.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, nil
}

var (
	_ Locker = NoopLocker{}
	_ Locker = (*RedisLocker)(nil)
)
