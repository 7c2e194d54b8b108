// Package facilitator liquida pagos directos payer → recipient reteniendo
// un fee de plataforma en basis points.
package facilitator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polysettle/internal/application/txn"
	"github.com/alejandrodnm/polysettle/internal/domain"
	"github.com/alejandrodnm/polysettle/internal/ports"
)

// Service es el facilitator de pagos.
type Service struct {
	run   *txn.Runner
	clock ports.Clock
}

func New(run *txn.Runner, clock ports.Clock) *Service {
	return &Service{run: run, clock: clock}
}

var lockKey = domain.FacilitatorKey().String()

// Initialize crea el record del facilitator.
func (s *Service) Initialize(ctx context.Context, authority string, feeBps uint16) error {
	if authority == "" {
		return fmt.Errorf("facilitator.Initialize: %w", domain.ErrInvalidIdentity)
	}
	if err := domain.ValidateFeeBps(feeBps); err != nil {
		return fmt.Errorf("facilitator.Initialize: %w", err)
	}
	now := s.clock.Now()
	err := s.run.Run(ctx, lockKey, func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		st := domain.FacilitatorState{Authority: authority, FeeBps: feeBps, CreatedAt: now}
		if err := tx.CreateFacilitator(ctx, st); err != nil {
			return nil, err
		}
		ev := domain.NewEvent(domain.EventFeeRateUpdated, now)
		ev.Actor = authority
		ev.Amount = uint64(feeBps)
		ev.Ref = "facilitator"
		return []domain.Event{ev}, nil
	})
	if err != nil {
		return fmt.Errorf("facilitator.Initialize: %w", err)
	}
	return nil
}

// Settle liquida un pago. Un payment ID solo puede usarse una vez.
func (s *Service) Settle(ctx context.Context, req domain.PaymentRequest) (domain.Payment, error) {
	out, err := s.settle(ctx, []domain.PaymentRequest{req})
	if err != nil {
		return domain.Payment{}, fmt.Errorf("facilitator.Settle: %s: %w", req.ID, err)
	}
	return out[0], nil
}

// BatchSettle liquida entre 1 y MaxBatch pagos en una transacción: o todos o ninguno.
func (s *Service) BatchSettle(ctx context.Context, reqs []domain.PaymentRequest) ([]domain.Payment, error) {
	if len(reqs) == 0 || len(reqs) > domain.MaxBatch {
		return nil, fmt.Errorf("facilitator.BatchSettle: %d payments: %w", len(reqs), domain.ErrInvalidBatch)
	}
	out, err := s.settle(ctx, reqs)
	if err != nil {
		return nil, fmt.Errorf("facilitator.BatchSettle: %w", err)
	}
	return out, nil
}

func (s *Service) settle(ctx context.Context, reqs []domain.PaymentRequest) ([]domain.Payment, error) {
	for _, r := range reqs {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("payment %q: %w", r.ID, err)
		}
	}
	now := s.clock.Now()
	var out []domain.Payment
	err := s.run.Run(ctx, lockKey, func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		st, err := tx.Facilitator(ctx)
		if err != nil {
			return nil, err
		}
		out = out[:0]
		events := make([]domain.Event, 0, len(reqs))
		for _, r := range reqs {
			net, fee, err := domain.ComputeFee(r.Amount, st.FeeBps)
			if err != nil {
				return nil, err
			}
			p := domain.Payment{
				ID:        r.ID,
				Payer:     r.Payer,
				Recipient: r.Recipient,
				Amount:    r.Amount,
				Fee:       fee,
				Net:       net,
				SettledAt: now,
			}
			if err := tx.CreatePayment(ctx, p); err != nil {
				if errors.Is(err, domain.ErrAlreadyExists) {
					return nil, fmt.Errorf("payment %q: %w", r.ID, domain.ErrPaymentUsed)
				}
				return nil, err
			}
			payer := domain.ParticipantAccount(r.Payer)
			if err := tx.Transfer(ctx, payer, domain.ParticipantAccount(r.Recipient), net); err != nil {
				return nil, err
			}
			if err := tx.Transfer(ctx, payer, domain.FacilitatorVault, fee); err != nil {
				return nil, err
			}

			if st.AccumulatedFees, err = domain.CheckedAdd(st.AccumulatedFees, fee); err != nil {
				return nil, err
			}
			if st.TotalSettled, err = domain.CheckedAdd(st.TotalSettled, r.Amount); err != nil {
				return nil, err
			}
			if st.PaymentCount, err = domain.CheckedAdd(st.PaymentCount, 1); err != nil {
				return nil, err
			}
			out = append(out, p)

			ev := domain.NewEvent(domain.EventPaymentSettled, now)
			ev.Actor = r.Payer
			ev.Amount = net
			ev.Fee = fee
			ev.Ref = r.ID
			events = append(events, ev)
		}
		return events, tx.SaveFacilitator(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("payments settled", "count", len(out))
	return out, nil
}

// WithdrawFees transfiere a la autoridad los fees acumulados.
func (s *Service) WithdrawFees(ctx context.Context, signer string) (uint64, error) {
	now := s.clock.Now()
	var amount uint64
	err := s.run.Run(ctx, lockKey, func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		st, err := tx.Facilitator(ctx)
		if err != nil {
			return nil, err
		}
		if err := st.Authorize(signer); err != nil {
			return nil, err
		}
		if st.AccumulatedFees == 0 {
			return nil, domain.ErrNoFees
		}
		amount = st.AccumulatedFees
		st.AccumulatedFees = 0
		if err := tx.SaveFacilitator(ctx, st); err != nil {
			return nil, err
		}
		if err := tx.Transfer(ctx, domain.FacilitatorVault, domain.ParticipantAccount(signer), amount); err != nil {
			return nil, err
		}
		ev := domain.NewEvent(domain.EventFeesWithdrawn, now)
		ev.Actor = signer
		ev.Amount = amount
		ev.Ref = "facilitator"
		return []domain.Event{ev}, nil
	})
	if err != nil {
		return 0, fmt.Errorf("facilitator.WithdrawFees: %w", err)
	}
	slog.Info("facilitator fees withdrawn", "authority", signer, "amount", amount)
	return amount, nil
}

// UpdateFee cambia el fee de plataforma. Solo la autoridad, máximo MaxFeeBps.
func (s *Service) UpdateFee(ctx context.Context, signer string, feeBps uint16) error {
	if err := domain.ValidateFeeBps(feeBps); err != nil {
		return fmt.Errorf("facilitator.UpdateFee: %w", err)
	}
	now := s.clock.Now()
	err := s.run.Run(ctx, lockKey, func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		st, err := tx.Facilitator(ctx)
		if err != nil {
			return nil, err
		}
		if err := st.Authorize(signer); err != nil {
			return nil, err
		}
		st.FeeBps = feeBps
		ev := domain.NewEvent(domain.EventFeeRateUpdated, now)
		ev.Actor = signer
		ev.Amount = uint64(feeBps)
		ev.Ref = "facilitator"
		return []domain.Event{ev}, tx.SaveFacilitator(ctx, st)
	})
	if err != nil {
		return fmt.Errorf("facilitator.UpdateFee: %w", err)
	}
	return nil
}

// State devuelve el record del facilitator.
func (s *Service) State(ctx context.Context) (domain.FacilitatorState, error) {
	var st domain.FacilitatorState
	err := s.run.Store().Atomic(ctx, func(tx ports.RecordTx) error {
		var err error
		st, err = tx.Facilitator(ctx)
		return err
	})
	if err != nil {
		return domain.FacilitatorState{}, fmt.Errorf("facilitator.State: %w", err)
	}
	return st, nil
}
