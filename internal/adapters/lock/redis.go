// Package lock implementa ports.Locker sobre Redis para serializar las
// operaciones de un mismo mercado entre varias instancias del settler.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/polysettle/internal/domain"
	"github.com/alejandrodnm/polysettle/internal/ports"
)

// unlockLua borra la key solo si el valor es el token del holder.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// Config son los parámetros de conexión.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// RedisLocker usa SET NX con TTL y un unlock condicional en Lua.
type RedisLocker struct {
	rdb      *redis.Client
	unlockSc *redis.Script
	prefix   string
}

var _ ports.Locker = (*RedisLocker)(nil)

// NewRedisLocker conecta y verifica con ping.
func NewRedisLocker(ctx context.Context, cfg Config) (*RedisLocker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("lock.NewRedisLocker: ping %s: %w", cfg.Addr, err)
	}
	return &RedisLocker{rdb: rdb, unlockSc: redis.NewScript(unlockLua), prefix: "settler:lock:"}, nil
}

// Acquire no espera: si otro tiene el lock devuelve domain.ErrLockHeld.
// El unlock devuelto se puede llamar más de una vez.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := l.prefix + key

	ok, err := l.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock.Acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock.Acquire %s: %w", key, domain.ErrLockHeld)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// contexto propio: el del caller puede estar cancelado
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.unlockSc.Run(unlockCtx, l.rdb, []string{lk}, token).Err()
	}, nil
}

func (l *RedisLocker) Close() error {
	return l.rdb.Close()
}
