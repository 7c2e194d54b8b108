package storage

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/polysettle/internal/ports"
)

// Open abre el record store del driver configurado: "sqlite" o "postgres".
func Open(ctx context.Context, driver, dsn string, maxConns int) (ports.RecordStore, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteStore(dsn)
	case "postgres":
		return NewPostgresStore(ctx, dsn, maxConns)
	default:
		return nil, fmt.Errorf("storage.Open: unknown driver %q", driver)
	}
}
