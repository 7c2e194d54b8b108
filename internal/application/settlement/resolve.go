package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polysettle/internal/application/oracle"
	"github.com/alejandrodnm/polysettle/internal/domain"
	"github.com/alejandrodnm/polysettle/internal/domain/variant"
	"github.com/alejandrodnm/polysettle/internal/ports"
)

// Resolve fija el lado ganador de un mercado a partir de la respuesta del
// oráculo. Los time-series se resuelven con ResolvePeriod.
func (e *Engine) Resolve(ctx context.Context, marketID uint64) (int, error) {
	now := e.clock.Now()
	var side int
	err := e.run.Run(ctx, marketLock(marketID), func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		m, policy, err := e.load(ctx, tx, marketID)
		if err != nil {
			return nil, err
		}
		if _, periodic := policy.(variant.Periodic); periodic {
			return nil, domain.ErrInvalidVariant
		}
		if err := policy.Gate(m); err != nil {
			return nil, err
		}
		if now.Before(m.Deadline) {
			return nil, domain.ErrTooEarly
		}
		view, err := oracle.View(ctx, tx, m.QuestionID)
		if err != nil {
			return nil, err
		}
		if !view.Answered() {
			return nil, domain.ErrOracleNotAnswered
		}
		side, err = policy.WinningSide(m, view)
		if err != nil {
			return nil, err
		}
		return e.finish(ctx, tx, &m, side, now)
	})
	if err != nil {
		return domain.NoSide, fmt.Errorf("settlement.Resolve: market %d: %w", marketID, err)
	}
	slog.Info("market resolved", "market_id", marketID, "winning_side", side)
	return side, nil
}

// finish resuelve m, barre sus fees y lo guarda.
func (e *Engine) finish(ctx context.Context, tx ports.RecordTx, m *domain.Market, side int, now time.Time) ([]domain.Event, error) {
	if err := m.Resolve(side, now); err != nil {
		return nil, err
	}
	swept, err := sweepFees(ctx, tx, m)
	if err != nil {
		return nil, err
	}
	if err := tx.SaveMarket(ctx, *m); err != nil {
		return nil, err
	}
	ev := domain.NewEvent(domain.EventMarketResolved, now)
	ev.MarketID = m.ID
	ev.Side = side
	ev.Fee = swept
	ev.Status = m.Status
	return []domain.Event{ev}, nil
}

// ResolvePeriod registra el resultado de un periodo de un mercado time-series.
// Cuando el último periodo queda resuelto el mercado pasa a Resolved.
func (e *Engine) ResolvePeriod(ctx context.Context, marketID uint64, period int) error {
	now := e.clock.Now()
	var done bool
	err := e.run.Run(ctx, marketLock(marketID), func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		m, policy, err := e.load(ctx, tx, marketID)
		if err != nil {
			return nil, err
		}
		periodic, ok := policy.(variant.Periodic)
		if !ok {
			return nil, domain.ErrInvalidVariant
		}
		switch {
		case m.Status.Terminal():
			return nil, domain.ErrAlreadyResolved
		case m.Status != domain.StatusActive:
			return nil, domain.ErrMarketNotActive
		case period < 0 || period >= len(m.Periods):
			return nil, domain.ErrInvalidPeriod
		case m.Periods[period].Resolved:
			return nil, domain.ErrAlreadyResolved
		case now.Before(m.Periods[period].Deadline):
			return nil, domain.ErrTooEarly
		}

		view, err := oracle.View(ctx, tx, m.Periods[period].QuestionID)
		if err != nil {
			return nil, err
		}
		if !view.Answered() {
			return nil, domain.ErrOracleNotAnswered
		}
		result := periodic.PeriodResult(view)
		if err := m.ResolvePeriod(period, result); err != nil {
			return nil, err
		}

		ev := domain.NewEvent(domain.EventPeriodResolved, now)
		ev.MarketID = marketID
		ev.Amount = result
		ev.Ref = fmt.Sprintf("period/%d", period)
		events := []domain.Event{ev}

		if !m.AllPeriodsResolved() {
			return events, tx.SaveMarket(ctx, m)
		}
		side, err := policy.WinningSide(m, view)
		if err != nil {
			return nil, err
		}
		done = true
		rest, err := e.finish(ctx, tx, &m, side, now)
		if err != nil {
			return nil, err
		}
		return append(events, rest...), nil
	})
	if err != nil {
		return fmt.Errorf("settlement.ResolvePeriod: market %d period %d: %w", marketID, period, err)
	}
	slog.Info("period resolved", "market_id", marketID, "period", period, "market_resolved", done)
	return nil
}

// CheckParent evalúa el estado terminal del mercado padre. No escribe en el padre.
func (e *Engine) CheckParent(ctx context.Context, marketID uint64) (bool, error) {
	now := e.clock.Now()
	var met bool
	err := e.run.Run(ctx, marketLock(marketID), func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		m, err := tx.Market(ctx, marketID)
		if err != nil {
			return nil, err
		}
		switch {
		case m.Variant != domain.VariantConditional:
			return nil, domain.ErrInvalidVariant
		case m.Status.Terminal():
			return nil, domain.ErrAlreadyResolved
		case m.Status != domain.StatusActive:
			return nil, domain.ErrMarketNotActive
		}
		parent, err := tx.Market(ctx, m.ParentID)
		if err != nil {
			return nil, err
		}
		met, err = variant.ConditionMet(m, parent)
		if err != nil {
			return nil, err
		}
		if err := m.ApplyCondition(met, now); err != nil {
			return nil, err
		}
		swept, err := sweepFees(ctx, tx, &m)
		if err != nil {
			return nil, err
		}
		if err := tx.SaveMarket(ctx, m); err != nil {
			return nil, err
		}

		ev := domain.NewEvent(domain.EventConditionChecked, now)
		ev.MarketID = marketID
		ev.Status = m.Status
		ev.Fee = swept
		ev.Ref = fmt.Sprintf("parent/%d", parent.ID)
		return []domain.Event{ev}, nil
	})
	if err != nil {
		return false, fmt.Errorf("settlement.CheckParent: market %d: %w", marketID, err)
	}
	slog.Info("parent condition checked", "market_id", marketID, "met", met)
	return met, nil
}

// Cancel anula un mercado cuyo oráculo no respondió pasado deadline + GracePeriod.
func (e *Engine) Cancel(ctx context.Context, marketID uint64) error {
	now := e.clock.Now()
	err := e.run.Run(ctx, marketLock(marketID), func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		m, policy, err := e.load(ctx, tx, marketID)
		if err != nil {
			return nil, err
		}
		switch {
		case !policy.Cancellable():
			return nil, domain.ErrNotCancellable
		case m.Status.Terminal():
			return nil, domain.ErrAlreadyResolved
		case m.Status != domain.StatusActive:
			return nil, domain.ErrMarketNotActive
		case now.Before(m.Deadline.Add(domain.GracePeriod)):
			return nil, domain.ErrTooEarly
		}
		view, err := oracle.View(ctx, tx, m.QuestionID)
		if err != nil {
			return nil, err
		}
		if view.Answered() {
			return nil, domain.ErrOracleAnswered
		}
		if err := m.Cancel(now); err != nil {
			return nil, err
		}
		swept, err := sweepFees(ctx, tx, &m)
		if err != nil {
			return nil, err
		}
		if err := tx.SaveMarket(ctx, m); err != nil {
			return nil, err
		}

		ev := domain.NewEvent(domain.EventMarketCancelled, now)
		ev.MarketID = marketID
		ev.Status = m.Status
		ev.Fee = swept
		return []domain.Event{ev}, nil
	})
	if err != nil {
		return fmt.Errorf("settlement.Cancel: market %d: %w", marketID, err)
	}
	slog.Info("market cancelled", "market_id", marketID)
	return nil
}
