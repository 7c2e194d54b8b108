package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polysettle/internal/adapters/storage"
	"github.com/alejandrodnm/polysettle/internal/domain"
	"github.com/alejandrodnm/polysettle/internal/ports"
)

var at = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleMarket(id uint64) domain.Market {
	return domain.NewMarket(id, "creator", domain.MarketParams{
		Variant:    domain.VariantBinary,
		Question:   "Will it snow?",
		Deadline:   at.Add(time.Hour),
		QuestionID: 3,
	}, 2, 200, at)
}

func TestSQLiteStore_CreateIsExclusive(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	err := db.Atomic(ctx, func(tx ports.RecordTx) error {
		return tx.CreateMarket(ctx, sampleMarket(1))
	})
	require.NoError(t, err)

	err = db.Atomic(ctx, func(tx ports.RecordTx) error {
		return tx.CreateMarket(ctx, sampleMarket(1))
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestSQLiteStore_MarketRoundTripAndList(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	require.NoError(t, db.Atomic(ctx, func(tx ports.RecordTx) error {
		for _, id := range []uint64{10, 2, 1} {
			if err := tx.CreateMarket(ctx, sampleMarket(id)); err != nil {
				return err
			}
		}
		return nil
	}))

	var got domain.Market
	require.NoError(t, db.Atomic(ctx, func(tx ports.RecordTx) error {
		m, err := tx.Market(ctx, 2)
		if err != nil {
			return err
		}
		m.Pools[0] = 500
		got = m
		return tx.SaveMarket(ctx, m)
	}))
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Equal(t, domain.NoSide, got.WinningSide)

	markets, err := db.ListMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, markets, 3)
	assert.Equal(t, []uint64{1, 2, 10}, []uint64{markets[0].ID, markets[1].ID, markets[2].ID})
	assert.Equal(t, uint64(500), markets[1].Pools[0])
}

func TestSQLiteStore_NotFound(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	err := db.Atomic(ctx, func(tx ports.RecordTx) error {
		_, err := tx.Position(ctx, 1, "nobody")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_RollbackOnError(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.Atomic(ctx, func(tx ports.RecordTx) error {
		if err := tx.CreateMarket(ctx, sampleMarket(1)); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, domain.NewEvent(domain.EventMarketCreated, at)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	markets, err := db.ListMarkets(ctx)
	require.NoError(t, err)
	assert.Empty(t, markets)
}

func TestSQLiteStore_TransferMovesBalance(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	require.NoError(t, db.Deposit(ctx, "participant/alice", 1000))
	require.NoError(t, db.Atomic(ctx, func(tx ports.RecordTx) error {
		return tx.Transfer(ctx, "participant/alice", "escrow/market/1", 400)
	}))

	alice, err := db.Balance(ctx, "participant/alice")
	require.NoError(t, err)
	escrow, err := db.Balance(ctx, "escrow/market/1")
	require.NoError(t, err)
	assert.Equal(t, uint64(600), alice)
	assert.Equal(t, uint64(400), escrow)
}

func TestSQLiteStore_TransferInsufficientFunds(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	require.NoError(t, db.Deposit(ctx, "participant/bob", 10))
	err := db.Atomic(ctx, func(tx ports.RecordTx) error {
		return tx.Transfer(ctx, "participant/bob", "escrow/market/1", 11)
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	bob, err := db.Balance(ctx, "participant/bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), bob)
}

func TestSQLiteStore_EventsByMarket(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	require.NoError(t, db.Atomic(ctx, func(tx ports.RecordTx) error {
		for i, kind := range []domain.EventKind{domain.EventMarketCreated, domain.EventPositionTaken, domain.EventMarketResolved} {
			ev := domain.NewEvent(kind, at.Add(time.Duration(i)*time.Minute))
			ev.MarketID = 7
			if err := tx.AppendEvent(ctx, ev); err != nil {
				return err
			}
		}
		other := domain.NewEvent(domain.EventMarketCreated, at)
		other.MarketID = 8
		return tx.AppendEvent(ctx, other)
	}))

	events, err := db.Events(ctx, 7)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventMarketCreated, events[0].Kind)
	assert.Equal(t, domain.EventMarketResolved, events[2].Kind)
	assert.NotEmpty(t, events[0].ID)
}

func TestSQLiteStore_PaymentDedupe(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()
	p := domain.Payment{ID: "pay-1", Payer: "a", Recipient: "b", Amount: 5}

	require.NoError(t, db.Atomic(ctx, func(tx ports.RecordTx) error { return tx.CreatePayment(ctx, p) }))
	err := db.Atomic(ctx, func(tx ports.RecordTx) error { return tx.CreatePayment(ctx, p) })
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := storage.Open(context.Background(), "mongo", "", 0)
	assert.Error(t, err)
}
