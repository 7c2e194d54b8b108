package ports

import "context"

// Archiver guarda snapshots de mercados liquidados en almacenamiento externo.
type Archiver interface {
	Put(ctx context.Context, key string, body []byte) error
}
