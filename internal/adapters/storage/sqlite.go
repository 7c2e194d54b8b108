package storage

// sqlite.go — record store sobre SQLite (pure Go, sin CGo).
//
// Estrategia:
//   - `records`: una fila por record, key determinista (market/7, position/7/alice)
//     y body JSON. El kind es el namespace de la key, para listar por tipo.
//   - `events`: log append-only, ordenado por seq.
//   - Una sola conexión: cada Atomic queda serializado (SQLite es single-writer),
//     que es el modelo de ejecución que asume el motor.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/polysettle/internal/domain"
	"github.com/alejandrodnm/polysettle/internal/ports"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
    key        TEXT PRIMARY KEY,
    kind       TEXT     NOT NULL,
    body       BLOB     NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    seq       INTEGER PRIMARY KEY AUTOINCREMENT,
    id        TEXT     NOT NULL UNIQUE,
    kind      TEXT     NOT NULL,
    market_id INTEGER  NOT NULL DEFAULT 0,
    body      BLOB     NOT NULL,
    at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_kind  ON records(kind);
CREATE INDEX IF NOT EXISTS idx_events_market ON events(market_id, seq);
`

// SQLiteStore implementa ports.RecordStore usando SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ ports.RecordStore = (*SQLiteStore)(nil)

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada y aplica el schema.
// Con ":memory:" sirve para tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Atomic ejecuta fn dentro de una transacción SQL.
func (s *SQLiteStore) Atomic(ctx context.Context, fn func(tx ports.RecordTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.Atomic: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&recordTx{raw: sqliteTx{tx: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.Atomic: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	bodies, err := s.queryBodies(ctx, `SELECT body FROM records WHERE kind = ?`, string(domain.NamespaceMarket))
	if err != nil {
		return nil, fmt.Errorf("storage.ListMarkets: %w", err)
	}
	return decodeMarkets(bodies)
}

func (s *SQLiteStore) Events(ctx context.Context, marketID uint64) ([]domain.Event, error) {
	bodies, err := s.queryBodies(ctx, `SELECT body FROM events WHERE market_id = ? ORDER BY seq`, int64(marketID))
	if err != nil {
		return nil, fmt.Errorf("storage.Events: %w", err)
	}
	return decodeEvents(bodies)
}

func (s *SQLiteStore) Balance(ctx context.Context, account string) (uint64, error) {
	var bal uint64
	err := s.Atomic(ctx, func(tx ports.RecordTx) error {
		var err error
		bal, err = tx.(*recordTx).balance(ctx, account)
		return err
	})
	return bal, err
}

func (s *SQLiteStore) Deposit(ctx context.Context, account string, amount uint64) error {
	return s.Atomic(ctx, func(tx ports.RecordTx) error {
		return tx.(*recordTx).credit(ctx, account, amount)
	})
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryBodies(ctx context.Context, query string, args ...any) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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

// sqliteTx implementa rawTx sobre *sql.Tx.
type sqliteTx struct {
	tx *sql.Tx
}

func (t sqliteTx) get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := t.tx.QueryRowContext(ctx, `SELECT body FROM records WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return body, err
}

func (t sqliteTx) insert(ctx context.Context, key, kind string, body []byte) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO records (key, kind, body, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		key, kind, body, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (t sqliteTx) upsert(ctx context.Context, key, kind string, body []byte) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO records (key, kind, body, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			body       = excluded.body,
			updated_at = excluded.updated_at`,
		key, kind, body, time.Now().UTC(),
	)
	return err
}

func (t sqliteTx) appendEvent(ctx context.Context, ev domain.Event, body []byte) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO events (id, kind, market_id, body, at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), int64(ev.MarketID), body, ev.At.UTC(),
	)
	return err
}
