package ports

import (
	"context"

	"github.com/alejandrodnm/polysettle/internal/domain"
)

// Notifier recibe los eventos de una operación después del commit.
type Notifier interface {
	// Publish no puede deshacer nada: la operación ya está aplicada.
	Publish(ctx context.Context, events []domain.Event) error
}
