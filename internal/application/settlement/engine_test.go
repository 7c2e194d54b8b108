package settlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polysettle/internal/domain"
)

func TestScenario_BinaryTwoPercent(t *testing.T) {
	e := setup(t, 200)
	id, qid := e.binary(t)

	e.stake(t, "alice", id, domain.SideYes, 1000)
	e.stake(t, "bob", id, domain.SideNo, 500)

	m, err := e.engine.Market(e.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []uint64{980, 490}, m.Pools)
	assert.Equal(t, uint64(30), m.TotalFees)
	assert.Equal(t, uint16(200), m.FeeBps)

	e.answer(t, qid, domain.AnswerPayload{Bool: true})
	e.clock.Set(m.Deadline)
	side, err := e.engine.Resolve(e.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SideYes, side)

	paid, err := e.engine.Claim(e.ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1470), paid)
	assert.Equal(t, uint64(1470), e.balance(t, domain.ParticipantAccount("alice")))

	_, err = e.engine.Claim(e.ctx, "alice", id)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	_, err = e.engine.Claim(e.ctx, "bob", id)
	assert.ErrorIs(t, err, domain.ErrNotWinner)

	// Los fees se barrieron al vault al resolver; el escrow queda vacío.
	assert.Equal(t, uint64(30), e.balance(t, domain.FeeVault))
	assert.Zero(t, e.balance(t, domain.MarketEscrow(id)))

	withdrawn, err := e.engine.WithdrawFees(e.ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), withdrawn)
	assert.Equal(t, uint64(30), e.balance(t, domain.ParticipantAccount(admin)))

	_, err = e.engine.WithdrawFees(e.ctx, admin)
	assert.ErrorIs(t, err, domain.ErrNoFees)
}

func TestScenario_MultiOutcomeWinner(t *testing.T) {
	e := setup(t, 0)
	deadline := t0.Add(48 * time.Hour)
	qid := e.ask(t, deadline)
	id, err := e.engine.CreateMarket(e.ctx, creator, domain.MarketParams{
		Variant:    domain.VariantMultiOutcome,
		Question:   "Which team wins the league?",
		Deadline:   deadline,
		QuestionID: qid,
		Labels:     []string{"Red", "Green", "Blue"},
	})
	require.NoError(t, err)

	e.stake(t, "red", id, 0, 300)
	e.stake(t, "green", id, 1, 200)
	e.stake(t, "blue", id, 2, 100)

	e.answer(t, qid, domain.AnswerPayload{Numeric: 1})
	e.clock.Set(deadline)
	side, err := e.engine.Resolve(e.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, side)

	paid, err := e.engine.Claim(e.ctx, "green", id)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), paid)
}

func TestScenario_ConditionalNotMetRefunds(t *testing.T) {
	e := setup(t, 200)
	parentID, parentQ := e.binary(t)

	childQ := e.ask(t, t0.Add(72*time.Hour))
	childID, err := e.engine.CreateMarket(e.ctx, creator, domain.MarketParams{
		Variant:            domain.VariantConditional,
		Question:           "If it rains, will the match be postponed?",
		Deadline:           t0.Add(72 * time.Hour),
		QuestionID:         childQ,
		ParentID:           parentID,
		RequiredParentSide: domain.SideYes,
	})
	require.NoError(t, err)

	e.stake(t, "carol", childID, domain.SideYes, 1000)
	e.stake(t, "carol", childID, domain.SideNo, 500)

	_, err = e.engine.CheckParent(e.ctx, childID)
	assert.ErrorIs(t, err, domain.ErrParentNotResolved)

	e.answer(t, parentQ, domain.AnswerPayload{Bool: false})
	e.clock.Set(t0.Add(24 * time.Hour))
	_, err = e.engine.Resolve(e.ctx, parentID)
	require.NoError(t, err)

	met, err := e.engine.CheckParent(e.ctx, childID)
	require.NoError(t, err)
	assert.False(t, met)

	child, err := e.engine.Market(e.ctx, childID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConditionNotMet, child.Status)

	paid, err := e.engine.Claim(e.ctx, "carol", childID)
	require.NoError(t, err)
	assert.Equal(t, uint64(980+490), paid)

	_, err = e.engine.Resolve(e.ctx, childID)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
}

func TestConditional_MetThenResolves(t *testing.T) {
	e := setup(t, 0)
	parentID, parentQ := e.binary(t)
	childQ := e.ask(t, t0.Add(72*time.Hour))
	childID, err := e.engine.CreateMarket(e.ctx, creator, domain.MarketParams{
		Variant:            domain.VariantConditional,
		Question:           "conditional",
		Deadline:           t0.Add(72 * time.Hour),
		QuestionID:         childQ,
		ParentID:           parentID,
		RequiredParentSide: domain.SideYes,
	})
	require.NoError(t, err)
	e.stake(t, "dave", childID, domain.SideYes, 100)
	e.stake(t, "erin", childID, domain.SideNo, 100)

	e.answer(t, childQ, domain.AnswerPayload{Bool: true})
	e.clock.Set(t0.Add(72 * time.Hour))
	_, err = e.engine.Resolve(e.ctx, childID)
	assert.ErrorIs(t, err, domain.ErrConditionNotChecked)

	e.answer(t, parentQ, domain.AnswerPayload{Bool: true})
	_, err = e.engine.Resolve(e.ctx, parentID)
	require.NoError(t, err)

	met, err := e.engine.CheckParent(e.ctx, childID)
	require.NoError(t, err)
	assert.True(t, met)

	_, err = e.engine.CheckParent(e.ctx, childID)
	assert.ErrorIs(t, err, domain.ErrMarketNotActive)

	side, err := e.engine.Resolve(e.ctx, childID)
	require.NoError(t, err)
	assert.Equal(t, domain.SideYes, side)

	paid, err := e.engine.Claim(e.ctx, "dave", childID)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), paid)
}

func TestCreateMarket_ConditionalValidatesParent(t *testing.T) {
	e := setup(t, 0)
	qid := e.ask(t, t0.Add(time.Hour))
	params := domain.MarketParams{
		Variant:            domain.VariantConditional,
		Question:           "orphan",
		Deadline:           t0.Add(time.Hour),
		QuestionID:         qid,
		ParentID:           99,
		RequiredParentSide: domain.SideYes,
	}
	_, err := e.engine.CreateMarket(e.ctx, creator, params)
	assert.ErrorIs(t, err, domain.ErrInvalidParent)

	parentID, _ := e.binary(t)
	params.ParentID = parentID
	params.RequiredParentSide = 2
	_, err = e.engine.CreateMarket(e.ctx, creator, params)
	assert.ErrorIs(t, err, domain.ErrInvalidParent)
}

func TestCreateMarket_Validation(t *testing.T) {
	e := setup(t, 0)
	qid := e.ask(t, t0.Add(time.Hour))

	_, err := e.engine.CreateMarket(e.ctx, creator, domain.MarketParams{
		Variant: domain.VariantBinary, Question: "", Deadline: t0.Add(time.Hour), QuestionID: qid,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuestion)

	_, err = e.engine.CreateMarket(e.ctx, creator, domain.MarketParams{
		Variant: domain.VariantBinary, Question: "q", Deadline: t0, QuestionID: qid,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDeadline)

	_, err = e.engine.CreateMarket(e.ctx, creator, domain.MarketParams{
		Variant: domain.VariantBinary, Question: "q", Deadline: t0.Add(time.Hour), QuestionID: 404,
	})
	assert.ErrorIs(t, err, domain.ErrMissingQuestion)

	_, err = e.engine.CreateMarket(e.ctx, creator, domain.MarketParams{
		Variant: "lottery", Question: "q", Deadline: t0.Add(time.Hour), QuestionID: qid,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidVariant)

	reg, err := e.engine.Registry(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, reg.MarketCounter)
}

func TestCreateMarket_IDsAreSequential(t *testing.T) {
	e := setup(t, 0)
	first, _ := e.binary(t)
	second, _ := e.binary(t)
	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)

	markets, err := e.engine.Markets(e.ctx)
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, first, markets[0].ID)
}

func TestFeeRate_SnapshotPerMarket(t *testing.T) {
	e := setup(t, 200)
	before, _ := e.binary(t)

	assert.ErrorIs(t, e.engine.SetFeeRate(e.ctx, "mallory", 100), domain.ErrUnauthorized)
	assert.ErrorIs(t, e.engine.SetFeeRate(e.ctx, admin, domain.MaxFeeBps+1), domain.ErrInvalidFeeRate)
	require.NoError(t, e.engine.SetFeeRate(e.ctx, admin, 500))
	after, _ := e.binary(t)

	e.stake(t, "alice", before, domain.SideYes, 1000)
	e.stake(t, "alice", after, domain.SideYes, 1000)

	pos, err := e.engine.Position(e.ctx, before, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(980), pos.Stakes[domain.SideYes])

	pos, err = e.engine.Position(e.ctx, after, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(950), pos.Stakes[domain.SideYes])
}

func TestInitialize_OnlyOnce(t *testing.T) {
	e := setup(t, 0)
	assert.ErrorIs(t, e.engine.Initialize(e.ctx, admin, 0), domain.ErrAlreadyExists)
	assert.ErrorIs(t, e.engine.Initialize(e.ctx, "", 0), domain.ErrInvalidIdentity)
}

func TestTakePosition_Rejections(t *testing.T) {
	e := setup(t, 200)
	id, qid := e.binary(t)

	_, err := e.engine.TakePosition(e.ctx, "alice", id, domain.SideYes, 100)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	e.fund(t, "alice", 1000)
	_, err = e.engine.TakePosition(e.ctx, "alice", id, 2, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidSide)

	_, err = e.engine.TakePosition(e.ctx, "alice", id, domain.SideYes, 0)
	assert.ErrorIs(t, err, domain.ErrZeroAmount)

	_, err = e.engine.TakePosition(e.ctx, "alice", 404, domain.SideYes, 100)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	e.clock.Set(t0.Add(24 * time.Hour))
	_, err = e.engine.TakePosition(e.ctx, "alice", id, domain.SideYes, 100)
	assert.ErrorIs(t, err, domain.ErrMarketExpired)

	e.answer(t, qid, domain.AnswerPayload{Bool: true})
	_, err = e.engine.Resolve(e.ctx, id)
	require.NoError(t, err)
	_, err = e.engine.TakePosition(e.ctx, "alice", id, domain.SideYes, 100)
	assert.ErrorIs(t, err, domain.ErrMarketNotActive)

	// Ninguna falla movió fondos.
	assert.Equal(t, uint64(1000), e.balance(t, domain.ParticipantAccount("alice")))
	m, err := e.engine.Market(e.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 0}, m.Pools)
}

func TestResolve_Preconditions(t *testing.T) {
	e := setup(t, 0)
	id, qid := e.binary(t)

	_, err := e.engine.Resolve(e.ctx, id)
	assert.ErrorIs(t, err, domain.ErrTooEarly)

	e.clock.Set(t0.Add(24 * time.Hour))
	_, err = e.engine.Resolve(e.ctx, id)
	assert.ErrorIs(t, err, domain.ErrOracleNotAnswered)

	e.answer(t, qid, domain.AnswerPayload{Bool: false})
	side, err := e.engine.Resolve(e.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SideNo, side)

	_, err = e.engine.Resolve(e.ctx, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
}

func TestResolve_EmptyWinningSideRefunds(t *testing.T) {
	e := setup(t, 0)
	id, qid := e.binary(t)
	e.stake(t, "bob", id, domain.SideNo, 490)

	e.answer(t, qid, domain.AnswerPayload{Bool: true})
	e.clock.Set(t0.Add(24 * time.Hour))
	_, err := e.engine.Resolve(e.ctx, id)
	require.NoError(t, err)

	paid, err := e.engine.Claim(e.ctx, "bob", id)
	require.NoError(t, err)
	assert.Equal(t, uint64(490), paid)

	events, err := e.store.Events(e.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.EventRefundClaimed, events[len(events)-1].Kind)
}

func TestRange_InAndOut(t *testing.T) {
	e := setup(t, 0)
	deadline := t0.Add(24 * time.Hour)
	qid := e.ask(t, deadline)
	id, err := e.engine.CreateMarket(e.ctx, creator, domain.MarketParams{
		Variant:    domain.VariantRange,
		Question:   "BTC between 90k and 110k?",
		Deadline:   deadline,
		QuestionID: qid,
		Lower:      90_000,
		Upper:      110_000,
	})
	require.NoError(t, err)
	e.stake(t, "in", id, domain.SideInRange, 300)
	e.stake(t, "out", id, domain.SideOutOfRange, 100)

	e.answer(t, qid, domain.AnswerPayload{Numeric: 110_000})
	e.clock.Set(deadline)
	side, err := e.engine.Resolve(e.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SideInRange, side)

	paid, err := e.engine.Claim(e.ctx, "in", id)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), paid)
}

func TestTimeSeries_AllOrNothing(t *testing.T) {
	e := setup(t, 0)
	d1, d2 := t0.Add(24*time.Hour), t0.Add(48*time.Hour)
	q1, q2 := e.ask(t, d1), e.ask(t, d2)
	id, err := e.engine.CreateMarket(e.ctx, creator, domain.MarketParams{
		Variant:  domain.VariantTimeSeries,
		Question: "Will the index rise two days in a row?",
		Periods: []domain.PeriodParams{
			{Deadline: d1, QuestionID: q1},
			{Deadline: d2, QuestionID: q2},
		},
	})
	require.NoError(t, err)

	e.stake(t, "bull", id, domain.SideAllSucceed, 200)
	e.stake(t, "bear", id, domain.SideNotAll, 100)

	_, err = e.engine.Resolve(e.ctx, id)
	assert.ErrorIs(t, err, domain.ErrInvalidVariant)
	assert.ErrorIs(t, e.engine.ResolvePeriod(e.ctx, id, 0), domain.ErrTooEarly)

	e.clock.Set(d1)
	_, err = e.engine.TakePosition(e.ctx, "bull", id, domain.SideAllSucceed, 1)
	assert.ErrorIs(t, err, domain.ErrMarketExpired)

	assert.ErrorIs(t, e.engine.ResolvePeriod(e.ctx, id, 0), domain.ErrOracleNotAnswered)
	e.answer(t, q1, domain.AnswerPayload{Numeric: 3})
	require.NoError(t, e.engine.ResolvePeriod(e.ctx, id, 0))
	assert.ErrorIs(t, e.engine.ResolvePeriod(e.ctx, id, 0), domain.ErrAlreadyResolved)
	assert.ErrorIs(t, e.engine.ResolvePeriod(e.ctx, id, 5), domain.ErrInvalidPeriod)

	m, err := e.engine.Market(e.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, m.Status)

	e.clock.Set(d2)
	e.answer(t, q2, domain.AnswerPayload{Numeric: 0})
	require.NoError(t, e.engine.ResolvePeriod(e.ctx, id, 1))

	m, err = e.engine.Market(e.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, m.Status)
	assert.Equal(t, domain.SideNotAll, m.WinningSide)

	paid, err := e.engine.Claim(e.ctx, "bear", id)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), paid)
}

func TestCancel_BinaryAfterGrace(t *testing.T) {
	e := setup(t, 200)
	id, _ := e.binary(t)
	e.stake(t, "alice", id, domain.SideYes, 1000)
	e.stake(t, "alice", id, domain.SideNo, 500)

	e.clock.Set(t0.Add(24 * time.Hour))
	assert.ErrorIs(t, e.engine.Cancel(e.ctx, id), domain.ErrTooEarly)

	e.clock.Set(t0.Add(24*time.Hour + domain.GracePeriod))
	require.NoError(t, e.engine.Cancel(e.ctx, id))
	assert.ErrorIs(t, e.engine.Cancel(e.ctx, id), domain.ErrAlreadyResolved)

	paid, err := e.engine.Claim(e.ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1470), paid)

	reg, err := e.engine.Registry(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), reg.AccumulatedFees)
}

func TestCancel_Rejections(t *testing.T) {
	e := setup(t, 0)
	id, qid := e.binary(t)
	e.answer(t, qid, domain.AnswerPayload{Bool: true})
	e.clock.Set(t0.Add(24*time.Hour + domain.GracePeriod))
	assert.ErrorIs(t, e.engine.Cancel(e.ctx, id), domain.ErrOracleAnswered)

	rq := e.ask(t, t0.Add(30*24*time.Hour))
	rangeID, err := e.engine.CreateMarket(e.ctx, creator, domain.MarketParams{
		Variant: domain.VariantRange, Question: "r", Deadline: t0.Add(30 * 24 * time.Hour),
		QuestionID: rq, Lower: 1, Upper: 2,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, e.engine.Cancel(e.ctx, rangeID), domain.ErrNotCancellable)
}

func TestClaim_NoPositionAndNotSettled(t *testing.T) {
	e := setup(t, 0)
	id, _ := e.binary(t)
	e.stake(t, "alice", id, domain.SideYes, 100)

	_, err := e.engine.Claim(e.ctx, "alice", id)
	assert.ErrorIs(t, err, domain.ErrNotSettled)

	_, err = e.engine.Claim(e.ctx, "nobody", id)
	assert.ErrorIs(t, err, domain.ErrNoPosition)

	// El intento fallido no dejó la posición marcada.
	pos, err := e.engine.Position(e.ctx, id, "alice")
	require.NoError(t, err)
	assert.False(t, pos.Claimed)
}

type memArchive map[string][]byte

func (m memArchive) Put(_ context.Context, key string, body []byte) error {
	m[key] = body
	return nil
}

func TestArchiveSettled_OnlyTerminal(t *testing.T) {
	e := setup(t, 0)
	open, _ := e.binary(t)
	done, qid := e.binary(t)
	e.stake(t, "alice", done, domain.SideYes, 10)
	e.answer(t, qid, domain.AnswerPayload{Bool: true})
	e.clock.Set(t0.Add(24 * time.Hour))
	_, err := e.engine.Resolve(e.ctx, done)
	require.NoError(t, err)

	arch := memArchive{}
	n, err := e.engine.ArchiveSettled(e.ctx, arch)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, arch, "markets/2.json")
	assert.NotContains(t, arch, "markets/1.json")
	assert.Contains(t, string(arch["markets/2.json"]), string(domain.EventMarketResolved))

	snap, err := e.engine.Snapshot(e.ctx, open)
	require.NoError(t, err)
	require.Len(t, snap.Events, 1)
	assert.Equal(t, domain.EventMarketCreated, snap.Events[0].Kind)
}
