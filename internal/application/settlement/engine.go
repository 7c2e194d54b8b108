// Package settlement es el motor único de mercados: crea, acepta stakes,
// resuelve contra el oráculo y paga. Lo específico de cada variante vive
// en las políticas de internal/domain/variant.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polysettle/internal/application/txn"
	"github.com/alejandrodnm/polysettle/internal/domain"
	"github.com/alejandrodnm/polysettle/internal/domain/variant"
	"github.com/alejandrodnm/polysettle/internal/ports"
)

// Engine aplica las operaciones de mercado. Cada método público es una
// transacción: se aplica entera o no se aplica.
type Engine struct {
	run      *txn.Runner
	clock    ports.Clock
	policies variant.Registry
}

// Option configura el Engine.
type Option func(*Engine)

// WithPolicies reemplaza el registry de variantes (por defecto variant.Default()).
func WithPolicies(r variant.Registry) Option {
	return func(e *Engine) { e.policies = r }
}

// New crea el motor sobre un Runner ya configurado con lock y notifier.
func New(run *txn.Runner, clock ports.Clock, opts ...Option) *Engine {
	e := &Engine{
		run:      run,
		clock:    clock,
		policies: variant.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var registryLock = domain.RegistryKey().String()

func marketLock(id uint64) string { return domain.MarketKey(id).String() }

// Initialize crea el registry de la deployment. Solo puede hacerse una vez.
func (e *Engine) Initialize(ctx context.Context, authority string, feeBps uint16) error {
	if authority == "" {
		return fmt.Errorf("settlement.Initialize: %w", domain.ErrInvalidIdentity)
	}
	if err := domain.ValidateFeeBps(feeBps); err != nil {
		return fmt.Errorf("settlement.Initialize: %w", err)
	}
	now := e.clock.Now()
	err := e.run.Run(ctx, registryLock, func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		reg := domain.Registry{Authority: authority, FeeBps: feeBps, CreatedAt: now}
		if err := tx.CreateRegistry(ctx, reg); err != nil {
			return nil, err
		}
		ev := domain.NewEvent(domain.EventFeeRateUpdated, now)
		ev.Actor = authority
		ev.Amount = uint64(feeBps)
		return []domain.Event{ev}, nil
	})
	if err != nil {
		return fmt.Errorf("settlement.Initialize: %w", err)
	}
	slog.Info("registry initialized", "authority", authority, "fee_bps", feeBps)
	return nil
}

// SetFeeRate cambia el fee de los mercados futuros. Los existentes conservan su snapshot.
func (e *Engine) SetFeeRate(ctx context.Context, signer string, feeBps uint16) error {
	if err := domain.ValidateFeeBps(feeBps); err != nil {
		return fmt.Errorf("settlement.SetFeeRate: %w", err)
	}
	now := e.clock.Now()
	err := e.run.Run(ctx, registryLock, func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		reg, err := tx.Registry(ctx)
		if err != nil {
			return nil, err
		}
		if err := reg.Authorize(signer); err != nil {
			return nil, err
		}
		reg.FeeBps = feeBps
		if err := tx.SaveRegistry(ctx, reg); err != nil {
			return nil, err
		}
		ev := domain.NewEvent(domain.EventFeeRateUpdated, now)
		ev.Actor = signer
		ev.Amount = uint64(feeBps)
		return []domain.Event{ev}, nil
	})
	if err != nil {
		return fmt.Errorf("settlement.SetFeeRate: %w", err)
	}
	return nil
}

// CreateMarket valida los parámetros con la política de la variante y crea
// el mercado con el siguiente ID del registry.
func (e *Engine) CreateMarket(ctx context.Context, creator string, p domain.MarketParams) (uint64, error) {
	if creator == "" {
		return 0, fmt.Errorf("settlement.CreateMarket: %w", domain.ErrInvalidIdentity)
	}
	policy, err := e.policies.Get(p.Variant)
	if err != nil {
		return 0, fmt.Errorf("settlement.CreateMarket: %w", err)
	}
	now := e.clock.Now()
	if err := policy.Validate(p, now); err != nil {
		return 0, fmt.Errorf("settlement.CreateMarket: %w", err)
	}

	var id uint64
	err = e.run.Run(ctx, registryLock, func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		reg, err := tx.Registry(ctx)
		if err != nil {
			return nil, err
		}
		if err := requireQuestions(ctx, tx, p); err != nil {
			return nil, err
		}
		if p.Variant == domain.VariantConditional {
			parent, err := tx.Market(ctx, p.ParentID)
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrInvalidParent
			}
			if err != nil {
				return nil, err
			}
			if p.RequiredParentSide >= len(parent.Pools) {
				return nil, domain.ErrInvalidParent
			}
		}

		id, err = reg.NextMarketID()
		if err != nil {
			return nil, err
		}
		m := domain.NewMarket(id, creator, p, policy.Sides(p), reg.FeeBps, now)
		if err := tx.CreateMarket(ctx, m); err != nil {
			return nil, err
		}
		if err := tx.SaveRegistry(ctx, reg); err != nil {
			return nil, err
		}

		ev := domain.NewEvent(domain.EventMarketCreated, now)
		ev.MarketID = id
		ev.Actor = creator
		ev.Status = m.Status
		ev.Ref = string(m.Variant)
		return []domain.Event{ev}, nil
	})
	if err != nil {
		return 0, fmt.Errorf("settlement.CreateMarket: %w", err)
	}
	slog.Info("market created", "market_id", id, "variant", p.Variant, "creator", creator)
	return id, nil
}

// requireQuestions exige que las preguntas referenciadas existan en el oráculo.
func requireQuestions(ctx context.Context, tx ports.RecordTx, p domain.MarketParams) error {
	ids := make([]uint64, 0, len(p.Periods)+1)
	if len(p.Periods) > 0 {
		for _, pp := range p.Periods {
			ids = append(ids, pp.QuestionID)
		}
	} else {
		ids = append(ids, p.QuestionID)
	}
	for _, qid := range ids {
		if _, err := tx.Question(ctx, qid); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("question %d: %w", qid, domain.ErrMissingQuestion)
			}
			return err
		}
	}
	return nil
}

// TakePosition acepta gross del participante sobre side. El fee se retiene
// en el escrow del mercado hasta que éste llega a un estado terminal.
func (e *Engine) TakePosition(ctx context.Context, participant string, marketID uint64, side int, gross uint64) (domain.Position, error) {
	if participant == "" {
		return domain.Position{}, fmt.Errorf("settlement.TakePosition: %w", domain.ErrInvalidIdentity)
	}
	now := e.clock.Now()
	var pos domain.Position
	err := e.run.Run(ctx, marketLock(marketID), func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		m, policy, err := e.load(ctx, tx, marketID)
		if err != nil {
			return nil, err
		}
		if err := policy.Accepting(m, now); err != nil {
			return nil, err
		}
		net, fee, err := m.AcceptStake(side, gross)
		if err != nil {
			return nil, err
		}

		pos, err = tx.Position(ctx, marketID, participant)
		if errors.Is(err, domain.ErrNotFound) {
			pos, err = domain.NewPosition(marketID, participant, len(m.Pools)), nil
		}
		if err != nil {
			return nil, err
		}
		if err := pos.RecordStake(side, net); err != nil {
			return nil, err
		}

		if err := tx.Transfer(ctx, domain.ParticipantAccount(participant), domain.MarketEscrow(marketID), gross); err != nil {
			return nil, err
		}
		if err := tx.SaveMarket(ctx, m); err != nil {
			return nil, err
		}
		if err := tx.SavePosition(ctx, pos); err != nil {
			return nil, err
		}

		ev := domain.NewEvent(domain.EventPositionTaken, now)
		ev.MarketID = marketID
		ev.Actor = participant
		ev.Side = side
		ev.Amount = net
		ev.Fee = fee
		return []domain.Event{ev}, nil
	})
	if err != nil {
		return domain.Position{}, fmt.Errorf("settlement.TakePosition: market %d: %w", marketID, err)
	}
	slog.Debug("position taken", "market_id", marketID, "participant", participant, "side", side, "gross", gross)
	return pos, nil
}

func (e *Engine) load(ctx context.Context, tx ports.MarketRecords, id uint64) (domain.Market, variant.Policy, error) {
	m, err := tx.Market(ctx, id)
	if err != nil {
		return domain.Market{}, nil, err
	}
	policy, err := e.policies.Get(m.Variant)
	if err != nil {
		return domain.Market{}, nil, err
	}
	return m, policy, nil
}

// sweepFees mueve los fees de un mercado terminal a vault/fees. Idempotente.
func sweepFees(ctx context.Context, tx ports.RecordTx, m *domain.Market) (uint64, error) {
	amount := m.SweepFees()
	if amount == 0 {
		return 0, nil
	}
	reg, err := tx.Registry(ctx)
	if err != nil {
		return 0, err
	}
	acc, err := domain.CheckedAdd(reg.AccumulatedFees, amount)
	if err != nil {
		return 0, err
	}
	reg.AccumulatedFees = acc
	if err := tx.SaveRegistry(ctx, reg); err != nil {
		return 0, err
	}
	if err := tx.Transfer(ctx, domain.MarketEscrow(m.ID), domain.FeeVault, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// WithdrawFees transfiere a la autoridad todos los fees acumulados en el vault.
func (e *Engine) WithdrawFees(ctx context.Context, signer string) (uint64, error) {
	now := e.clock.Now()
	var amount uint64
	err := e.run.Run(ctx, registryLock, func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		reg, err := tx.Registry(ctx)
		if err != nil {
			return nil, err
		}
		if err := reg.Authorize(signer); err != nil {
			return nil, err
		}
		if reg.AccumulatedFees == 0 {
			return nil, domain.ErrNoFees
		}
		amount = reg.AccumulatedFees
		reg.AccumulatedFees = 0
		if err := tx.SaveRegistry(ctx, reg); err != nil {
			return nil, err
		}
		if err := tx.Transfer(ctx, domain.FeeVault, domain.ParticipantAccount(signer), amount); err != nil {
			return nil, err
		}
		ev := domain.NewEvent(domain.EventFeesWithdrawn, now)
		ev.Actor = signer
		ev.Amount = amount
		return []domain.Event{ev}, nil
	})
	if err != nil {
		return 0, fmt.Errorf("settlement.WithdrawFees: %w", err)
	}
	slog.Info("fees withdrawn", "authority", signer, "amount", amount)
	return amount, nil
}
