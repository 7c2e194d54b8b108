package settlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polysettle/internal/adapters/clock"
	"github.com/alejandrodnm/polysettle/internal/adapters/storage"
	"github.com/alejandrodnm/polysettle/internal/application/oracle"
	"github.com/alejandrodnm/polysettle/internal/application/settlement"
	"github.com/alejandrodnm/polysettle/internal/application/txn"
	"github.com/alejandrodnm/polysettle/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	admin    = "admin"
	provider = "provider"
	creator  = "creator"
)

// env levanta motor + oráculo sobre SQLite en memoria.
type env struct {
	ctx    context.Context
	store  *storage.SQLiteStore
	clock  *clock.Manual
	engine *settlement.Engine
	oracle *oracle.Registry
}

func newEnv(t require.TestingT, feeBps uint16) *env {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	clk := clock.NewManual(t0)
	run := txn.NewRunner(store)
	e := &env{
		ctx:    context.Background(),
		store:  store,
		clock:  clk,
		engine: settlement.New(run, clk),
		oracle: oracle.NewRegistry(run, clk),
	}
	require.NoError(t, e.engine.Initialize(e.ctx, admin, feeBps))
	require.NoError(t, e.oracle.Initialize(e.ctx, admin, provider, 1_000))
	require.NoError(t, store.Deposit(e.ctx, domain.ParticipantAccount(creator), 1_000_000))
	return e
}

func setup(t *testing.T, feeBps uint16) *env {
	t.Helper()
	e := newEnv(t, feeBps)
	t.Cleanup(func() { e.store.Close() })
	return e
}

func (e *env) fund(t require.TestingT, who string, amount uint64) {
	require.NoError(t, e.store.Deposit(e.ctx, domain.ParticipantAccount(who), amount))
}

func (e *env) balance(t require.TestingT, account string) uint64 {
	bal, err := e.store.Balance(e.ctx, account)
	require.NoError(t, err)
	return bal
}

func (e *env) ask(t require.TestingT, deadline time.Time) uint64 {
	id, err := e.oracle.Ask(e.ctx, creator, oracle.AskRequest{
		Type:     domain.QuestionGeneral,
		Text:     "market question",
		Deadline: deadline,
	})
	require.NoError(t, err)
	return id
}

func (e *env) answer(t require.TestingT, qid uint64, p domain.AnswerPayload) {
	if p.Confidence == 0 {
		p.Confidence = 95
	}
	require.NoError(t, e.oracle.Answer(e.ctx, provider, qid, p))
}

// binary crea un mercado YES/NO con deadline t0+24h.
func (e *env) binary(t require.TestingT) (marketID, questionID uint64) {
	deadline := t0.Add(24 * time.Hour)
	qid := e.ask(t, deadline)
	id, err := e.engine.CreateMarket(e.ctx, creator, domain.MarketParams{
		Variant:    domain.VariantBinary,
		Question:   "Will it rain tomorrow?",
		Deadline:   deadline,
		QuestionID: qid,
	})
	require.NoError(t, err)
	return id, qid
}

func (e *env) stake(t require.TestingT, who string, marketID uint64, side int, gross uint64) {
	e.fund(t, who, gross)
	_, err := e.engine.TakePosition(e.ctx, who, marketID, side, gross)
	require.NoError(t, err)
}
