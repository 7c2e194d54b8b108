// Package txn ejecuta las operaciones de los servicios dentro de una
// transacción del store, con lock opcional y publicación de eventos.
package txn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polysettle/internal/domain"
	"github.com/alejandrodnm/polysettle/internal/ports"
)

// DefaultLockTTL es suficiente para cualquier operación: ninguna hace I/O externo.
const DefaultLockTTL = 10 * time.Second

// Op es el cuerpo de una operación. Los eventos que devuelve se persisten en
// la misma transacción y se publican después del commit.
type Op func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error)

// Runner comparte store, lock y notifier entre los servicios.
type Runner struct {
	store    ports.RecordStore
	notifier ports.Notifier
	locker   ports.Locker
	lockTTL  time.Duration
}

// NewRunner crea un Runner sin lock ni notifier.
func NewRunner(store ports.RecordStore) *Runner {
	return &Runner{store: store, lockTTL: DefaultLockTTL}
}

// SetNotifier y SetLocker aceptan nil para desactivar.
func (r *Runner) SetNotifier(n ports.Notifier) { r.notifier = n }

func (r *Runner) SetLocker(l ports.Locker, ttl time.Duration) {
	r.locker = l
	if ttl > 0 {
		r.lockTTL = ttl
	}
}

// Store devuelve el store subyacente para lecturas fuera de transacción.
func (r *Runner) Store() ports.RecordStore { return r.store }

// Run ejecuta op de forma atómica. lockKey vacío no toma lock.
func (r *Runner) Run(ctx context.Context, lockKey string, op Op) error {
	if r.locker != nil && lockKey != "" {
		unlock, err := r.locker.Acquire(ctx, lockKey, r.lockTTL)
		if err != nil {
			return fmt.Errorf("txn.Run: lock %s: %w", lockKey, err)
		}
		defer unlock()
	}

	var events []domain.Event
	err := r.store.Atomic(ctx, func(tx ports.RecordTx) error {
		evs, err := op(ctx, tx)
		if err != nil {
			return err
		}
		for _, ev := range evs {
			if err := tx.AppendEvent(ctx, ev); err != nil {
				return fmt.Errorf("append event %s: %w", ev.Kind, err)
			}
		}
		events = evs
		return nil
	})
	if err != nil {
		return err
	}

	if r.notifier != nil && len(events) > 0 {
		if err := r.notifier.Publish(ctx, events); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}
	return nil
}
