package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alejandrodnm/polysettle/internal/domain"
	"github.com/alejandrodnm/polysettle/internal/ports"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS records (
    key        TEXT PRIMARY KEY,
    kind       TEXT        NOT NULL,
    body       BYTEA       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS events (
    seq       BIGSERIAL PRIMARY KEY,
    id        TEXT        NOT NULL UNIQUE,
    kind      TEXT        NOT NULL,
    market_id BIGINT      NOT NULL DEFAULT 0,
    body      BYTEA       NOT NULL,
    at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_kind  ON records(kind);
CREATE INDEX IF NOT EXISTS idx_events_market ON events(market_id, seq);
`

// PostgresStore implementa ports.RecordStore sobre PostgreSQL.
// Cada Atomic es una transacción SERIALIZABLE: dos operaciones concurrentes
// sobre el mismo mercado no pueden intercalarse; la perdedora falla y el
// caller decide si reintenta.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ ports.RecordStore = (*PostgresStore)(nil)

// NewPostgresStore conecta, verifica con ping y aplica el schema.
func NewPostgresStore(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgresStore: parse config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgresStore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgresStore: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgresStore: apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Atomic(ctx context.Context, fn func(tx ports.RecordTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("storage.Atomic: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&recordTx{raw: pgTx{tx: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage.Atomic: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	bodies, err := s.queryBodies(ctx, `SELECT body FROM records WHERE kind = $1`, string(domain.NamespaceMarket))
	if err != nil {
		return nil, fmt.Errorf("storage.ListMarkets: %w", err)
	}
	return decodeMarkets(bodies)
}

func (s *PostgresStore) Events(ctx context.Context, marketID uint64) ([]domain.Event, error) {
	bodies, err := s.queryBodies(ctx, `SELECT body FROM events WHERE market_id = $1 ORDER BY seq`, int64(marketID))
	if err != nil {
		return nil, fmt.Errorf("storage.Events: %w", err)
	}
	return decodeEvents(bodies)
}

func (s *PostgresStore) Balance(ctx context.Context, account string) (uint64, error) {
	var bal uint64
	err := s.Atomic(ctx, func(tx ports.RecordTx) error {
		var err error
		bal, err = tx.(*recordTx).balance(ctx, account)
		return err
	})
	return bal, err
}

func (s *PostgresStore) Deposit(ctx context.Context, account string, amount uint64) error {
	return s.Atomic(ctx, func(tx ports.RecordTx) error {
		return tx.(*recordTx).credit(ctx, account, amount)
	})
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) queryBodies(ctx context.Context, query string, args ...any) ([][]byte, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bodies [][]byte
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		bodies = append(bodies, b)
	}
	return bodies, rows.Err()
}

type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := t.tx.QueryRow(ctx, `SELECT body FROM records WHERE key = $1`, key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return body, err
}

func (t pgTx) insert(ctx context.Context, key, kind string, body []byte) error {
	tag, err := t.tx.Exec(ctx,
		`INSERT INTO records (key, kind, body, updated_at) VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (key) DO NOTHING`,
		key, kind, body,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (t pgTx) upsert(ctx context.Context, key, kind string, body []byte) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO records (key, kind, body, updated_at) VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (key) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`,
		key, kind, body,
	)
	return err
}

func (t pgTx) appendEvent(ctx context.Context, ev domain.Event, body []byte) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO events (id, kind, market_id, body, at) VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, string(ev.Kind), int64(ev.MarketID), body, ev.At.UTC(),
	)
	return err
}
