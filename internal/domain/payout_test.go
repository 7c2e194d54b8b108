package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func resolvedMarket(pools []uint64, win int) Market {
	return Market{ID: 1, Status: StatusResolved, Pools: pools, WinningSide: win}
}

func TestPayout_BinarySoleWinnerTakesPool(t *testing.T) {
	m := resolvedMarket([]uint64{980, 490}, SideYes)
	p := Position{Stakes: []uint64{980, 0}}

	for _, f := range []PayoutFormula{ProportionalOfTotal, StakePlusShare} {
		got, err := ComputePayout(m, p, f)
		require.NoError(t, err, f.String())
		assert.Equal(t, uint64(1470), got, f.String())
	}
}

func TestPayout_MultiOutcomeSoleWinner(t *testing.T) {
	m := resolvedMarket([]uint64{300, 200, 100}, 1)
	p := Position{Stakes: []uint64{0, 200, 0}}

	got, err := ComputePayout(m, p, ProportionalOfTotal)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), got)
}

func TestPayout_FloorLeavesDust(t *testing.T) {
	// W=3 entre tres ganadores de 1, L=1: cada uno recibe floor(4/3) = 1.
	m := resolvedMarket([]uint64{3, 1}, SideYes)
	p := Position{Stakes: []uint64{1, 0}}

	got, err := ComputePayout(m, p, StakePlusShare)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got)
}

func TestPayout_LoserGetsNothing(t *testing.T) {
	m := resolvedMarket([]uint64{980, 490}, SideYes)
	_, err := ComputePayout(m, Position{Stakes: []uint64{0, 490}}, StakePlusShare)
	assert.ErrorIs(t, err, ErrNotWinner)

	_, err = ComputePayout(m, Position{Stakes: []uint64{0, 0}}, StakePlusShare)
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestPayout_EmptyWinningPoolRefunds(t *testing.T) {
	m := resolvedMarket([]uint64{0, 490}, SideYes)
	got, err := ComputePayout(m, Position{Stakes: []uint64{0, 490}}, ProportionalOfTotal)
	require.NoError(t, err)
	assert.Equal(t, uint64(490), got)
}

func TestPayout_RefundStates(t *testing.T) {
	p := Position{Stakes: []uint64{120, 80}}
	for _, st := range []MarketStatus{StatusCancelled, StatusConditionNotMet} {
		m := Market{Status: st, Pools: []uint64{500, 500}, WinningSide: NoSide}
		got, err := ComputePayout(m, p, StakePlusShare)
		require.NoError(t, err)
		assert.Equal(t, uint64(200), got, string(st))
	}
}

func TestPayout_NotSettled(t *testing.T) {
	for _, st := range []MarketStatus{StatusActive, StatusConditionMet} {
		m := Market{Status: st, Pools: []uint64{1, 1}, WinningSide: NoSide}
		_, err := ComputePayout(m, Position{Stakes: []uint64{1, 0}}, StakePlusShare)
		assert.ErrorIs(t, err, ErrNotSettled)
	}
}

func TestPayout_OverflowIsReported(t *testing.T) {
	// s*(W+L)/W con W+L > 2^64: el resultado no cabe en uint64.
	m := resolvedMarket([]uint64{math.MaxUint64, math.MaxUint64}, SideYes)
	p := Position{Stakes: []uint64{math.MaxUint64, 0}}
	_, err := ComputePayout(m, p, ProportionalOfTotal)
	assert.ErrorIs(t, err, ErrOverflow)
}

// --- propiedades ---

func TestPayout_FormulasAgree(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.Uint64Range(1, 1<<62).Draw(t, "w")
		s := rapid.Uint64Range(1, w).Draw(t, "s")
		l := rapid.Uint64Range(0, 1<<62).Draw(t, "l")

		a, errA := ProportionalOfTotal.Apply(s, w, l)
		b, errB := StakePlusShare.Apply(s, w, l)
		if errA != nil || errB != nil {
			t.Fatalf("errors: %v %v", errA, errB)
		}
		if a != b {
			t.Fatalf("formulas disagree: %d vs %d (s=%d w=%d l=%d)", a, b, s, w, l)
		}
	})
}

func TestPayout_BoundedByPool(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sides := rapid.IntRange(2, MaxOutcomes).Draw(t, "sides")
		win := rapid.IntRange(0, sides-1).Draw(t, "win")
		n := rapid.IntRange(1, 20).Draw(t, "participants")

		pools := make([]uint64, sides)
		positions := make([]Position, n)
		for i := range positions {
			positions[i] = NewPosition(1, "p", sides)
			side := rapid.IntRange(0, sides-1).Draw(t, "side")
			stake := rapid.Uint64Range(1, 1<<32).Draw(t, "stake")
			positions[i].Stakes[side] += stake
			pools[side] += stake
		}
		m := resolvedMarket(pools, win)
		total, _ := m.TotalPool()

		formula := ProportionalOfTotal
		if rapid.Bool().Draw(t, "plus_share") {
			formula = StakePlusShare
		}

		var paid uint64
		for _, p := range positions {
			got, err := ComputePayout(m, p, formula)
			switch {
			case err == nil:
				paid += got
			case pools[win] != 0:
				// perdedores
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if paid > total {
			t.Fatalf("paid %d exceeds pool %d", paid, total)
		}
	})
}
