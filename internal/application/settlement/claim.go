package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polysettle/internal/domain"
	"github.com/alejandrodnm/polysettle/internal/ports"
)

// Claim paga al participante su parte del pool (o el refund) una sola vez.
// La posición queda marcada como reclamada antes de mover fondos.
func (e *Engine) Claim(ctx context.Context, participant string, marketID uint64) (uint64, error) {
	now := e.clock.Now()
	var amount uint64
	err := e.run.Run(ctx, marketLock(marketID), func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		m, policy, err := e.load(ctx, tx, marketID)
		if err != nil {
			return nil, err
		}
		pos, err := tx.Position(ctx, marketID, participant)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoPosition
		}
		if err != nil {
			return nil, err
		}

		if err := pos.MarkClaimed(now); err != nil {
			return nil, err
		}
		amount, err = domain.ComputePayout(m, pos, policy.Formula())
		if err != nil {
			return nil, err
		}
		pos.Payout = amount
		if err := tx.SavePosition(ctx, pos); err != nil {
			return nil, err
		}
		if err := tx.Transfer(ctx, domain.MarketEscrow(marketID), domain.ParticipantAccount(participant), amount); err != nil {
			return nil, err
		}

		kind := domain.EventWinningsClaimed
		if isRefund(m) {
			kind = domain.EventRefundClaimed
		}
		ev := domain.NewEvent(kind, now)
		ev.MarketID = marketID
		ev.Actor = participant
		ev.Amount = amount
		ev.Status = m.Status
		return []domain.Event{ev}, nil
	})
	if err != nil {
		return 0, fmt.Errorf("settlement.Claim: market %d: %w", marketID, err)
	}
	slog.Info("claim paid", "market_id", marketID, "participant", participant, "amount", amount)
	return amount, nil
}

func isRefund(m domain.Market) bool {
	if m.Status.Refunds() {
		return true
	}
	return m.WinningSide >= 0 && m.WinningSide < len(m.Pools) && m.Pools[m.WinningSide] == 0
}

// Market devuelve el record de un mercado.
func (e *Engine) Market(ctx context.Context, id uint64) (domain.Market, error) {
	var m domain.Market
	err := e.run.Store().Atomic(ctx, func(tx ports.RecordTx) error {
		var err error
		m, err = tx.Market(ctx, id)
		return err
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("settlement.Market: %d: %w", id, err)
	}
	return m, nil
}

// Position devuelve la posición de participant en el mercado.
func (e *Engine) Position(ctx context.Context, marketID uint64, participant string) (domain.Position, error) {
	var p domain.Position
	err := e.run.Store().Atomic(ctx, func(tx ports.RecordTx) error {
		var err error
		p, err = tx.Position(ctx, marketID, participant)
		return err
	})
	if err != nil {
		return domain.Position{}, fmt.Errorf("settlement.Position: market %d: %w", marketID, err)
	}
	return p, nil
}

// Registry devuelve el record de configuración.
func (e *Engine) Registry(ctx context.Context) (domain.Registry, error) {
	var r domain.Registry
	err := e.run.Store().Atomic(ctx, func(tx ports.RecordTx) error {
		var err error
		r, err = tx.Registry(ctx)
		return err
	})
	if err != nil {
		return domain.Registry{}, fmt.Errorf("settlement.Registry: %w", err)
	}
	return r, nil
}

// Markets lista todos los mercados por ID.
func (e *Engine) Markets(ctx context.Context) ([]domain.Market, error) {
	ms, err := e.run.Store().ListMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("settlement.Markets: %w", err)
	}
	return ms, nil
}
