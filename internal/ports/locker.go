package ports

import (
	"context"
	"time"
)

// Locker serializa operaciones sobre una misma key entre procesos.
type Locker interface {
	// Acquire devuelve la función de unlock, o domain.ErrLockHeld si otro la tiene.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
