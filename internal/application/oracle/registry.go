// Package oracle implementa el registro de preguntas y respuestas del que
// leen los mercados al resolverse.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polysettle/internal/application/txn"
	"github.com/alejandrodnm/polysettle/internal/domain"
	"github.com/alejandrodnm/polysettle/internal/ports"
)

// AskRequest es una pregunta a registrar.
type AskRequest struct {
	Type     domain.QuestionType
	Text     string
	Deadline time.Time
}

// AnswerItem es una entrada de BatchAnswer.
type AnswerItem struct {
	QuestionID uint64
	Payload    domain.AnswerPayload
}

// Registry expone las operaciones del oráculo. Todas pasan por el lock
// global del oráculo porque tocan el record singleton.
type Registry struct {
	run   *txn.Runner
	clock ports.Clock
}

// NewRegistry crea el registro sobre un Runner compartido con settlement.
func NewRegistry(run *txn.Runner, clock ports.Clock) *Registry {
	return &Registry{run: run, clock: clock}
}

var lockKey = domain.OracleKey().String()

// Initialize crea el record del oráculo. fee 0 usa DefaultOracleFee.
func (r *Registry) Initialize(ctx context.Context, authority, provider string, fee uint64) error {
	if authority == "" || provider == "" {
		return fmt.Errorf("oracle.Initialize: %w", domain.ErrInvalidIdentity)
	}
	if fee == 0 {
		fee = domain.DefaultOracleFee
	}
	now := r.clock.Now()
	err := r.run.Run(ctx, lockKey, func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		st := domain.OracleState{
			Authority: authority,
			Provider:  provider,
			Fee:       fee,
			CreatedAt: now,
		}
		if err := tx.CreateOracle(ctx, st); err != nil {
			return nil, err
		}
		ev := domain.NewEvent(domain.EventOracleUpdated, now)
		ev.Actor = authority
		ev.Amount = fee
		ev.Ref = provider
		return []domain.Event{ev}, nil
	})
	if err != nil {
		return fmt.Errorf("oracle.Initialize: %w", err)
	}
	slog.Info("oracle initialized", "authority", authority, "provider", provider, "fee", fee)
	return nil
}

// Ask registra una pregunta y cobra el bounty vigente al requester.
func (r *Registry) Ask(ctx context.Context, requester string, req AskRequest) (uint64, error) {
	ids, err := r.ask(ctx, requester, []AskRequest{req})
	if err != nil {
		return 0, fmt.Errorf("oracle.Ask: %w", err)
	}
	return ids[0], nil
}

// BatchAsk registra entre 1 y MaxBatch preguntas en una sola transacción.
// Si una falla no se registra ninguna.
func (r *Registry) BatchAsk(ctx context.Context, requester string, reqs []AskRequest) ([]uint64, error) {
	if len(reqs) == 0 || len(reqs) > domain.MaxBatch {
		return nil, fmt.Errorf("oracle.BatchAsk: %d questions: %w", len(reqs), domain.ErrInvalidBatch)
	}
	ids, err := r.ask(ctx, requester, reqs)
	if err != nil {
		return nil, fmt.Errorf("oracle.BatchAsk: %w", err)
	}
	return ids, nil
}

func (r *Registry) ask(ctx context.Context, requester string, reqs []AskRequest) ([]uint64, error) {
	if requester == "" {
		return nil, domain.ErrInvalidIdentity
	}
	now := r.clock.Now()
	for i, req := range reqs {
		if err := validateAsk(req, now); err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
	}

	var ids []uint64
	err := r.run.Run(ctx, lockKey, func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		st, err := tx.Oracle(ctx)
		if err != nil {
			return nil, err
		}
		ids = ids[:0]
		events := make([]domain.Event, 0, len(reqs))
		for _, req := range reqs {
			id, err := st.NextQuestionID()
			if err != nil {
				return nil, err
			}
			q := domain.Question{
				ID:          id,
				Requester:   requester,
				Type:        req.Type,
				Text:        req.Text,
				ContentHash: domain.ContentHash(req.Text),
				Bounty:      st.Fee,
				AskedAt:     now,
				Deadline:    req.Deadline,
				Status:      domain.AnswerPending,
			}
			if err := tx.CreateQuestion(ctx, q); err != nil {
				return nil, err
			}
			if err := tx.Transfer(ctx, domain.ParticipantAccount(requester), domain.OracleEscrow, q.Bounty); err != nil {
				return nil, err
			}
			ids = append(ids, id)

			ev := domain.NewEvent(domain.EventQuestionAsked, now)
			ev.QuestionID = id
			ev.Actor = requester
			ev.Amount = q.Bounty
			ev.Ref = q.ContentHash
			events = append(events, ev)
		}
		return events, tx.SaveOracle(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("questions asked", "requester", requester, "ids", ids)
	return ids, nil
}

func validateAsk(req AskRequest, now time.Time) error {
	if !req.Type.Valid() {
		return domain.ErrInvalidQuestion
	}
	if err := domain.ValidateQuestion(req.Text); err != nil {
		return err
	}
	if !req.Deadline.After(now) {
		return domain.ErrInvalidDeadline
	}
	return nil
}

// Answer registra la respuesta del provider autorizado. Solo una por pregunta.
func (r *Registry) Answer(ctx context.Context, provider string, questionID uint64, p domain.AnswerPayload) error {
	if p.Confidence == 0 || p.Confidence > domain.MaxConfidence {
		return fmt.Errorf("oracle.Answer: confidence %d: %w", p.Confidence, domain.ErrInvalidConfidence)
	}
	now := r.clock.Now()
	err := r.run.Run(ctx, lockKey, func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		st, err := tx.Oracle(ctx)
		if err != nil {
			return nil, err
		}
		if provider == "" || provider != st.Provider {
			return nil, domain.ErrUnauthorized
		}
		q, err := tx.Question(ctx, questionID)
		if err != nil {
			return nil, err
		}
		switch {
		case q.Refunded:
			return nil, domain.ErrAlreadyRefunded
		case q.Status != domain.AnswerPending:
			return nil, domain.ErrAlreadyAnswered
		}

		a := domain.Answer{
			QuestionID: questionID,
			Provider:   provider,
			Confidence: p.Confidence,
			Bool:       p.Bool,
			Numeric:    p.Numeric,
			Text:       p.Text,
			Source:     p.Source,
			AnsweredAt: now,
		}
		if err := tx.CreateAnswer(ctx, a); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return nil, domain.ErrAlreadyAnswered
			}
			return nil, err
		}
		balance, err := domain.CheckedAdd(st.ProviderBalance, q.Bounty)
		if err != nil {
			return nil, err
		}
		st.ProviderBalance = balance
		q.Status = domain.AnswerAnswered

		if err := tx.SaveQuestion(ctx, q); err != nil {
			return nil, err
		}
		if err := tx.SaveOracle(ctx, st); err != nil {
			return nil, err
		}

		ev := domain.NewEvent(domain.EventQuestionAnswered, now)
		ev.QuestionID = questionID
		ev.Actor = provider
		ev.Amount = q.Bounty
		ev.Ref = p.Source
		return []domain.Event{ev}, nil
	})
	if err != nil {
		return fmt.Errorf("oracle.Answer: question %d: %w", questionID, err)
	}
	return nil
}

// BatchAnswer aplica cada respuesta como un Answer independiente.
// Devuelve un error por item (nil si se aplicó).
func (r *Registry) BatchAnswer(ctx context.Context, provider string, items []AnswerItem) ([]error, error) {
	if len(items) == 0 || len(items) > domain.MaxBatch {
		return nil, fmt.Errorf("oracle.BatchAnswer: %d answers: %w", len(items), domain.ErrInvalidBatch)
	}
	results := make([]error, len(items))
	for i, it := range items {
		results[i] = r.Answer(ctx, provider, it.QuestionID, it.Payload)
		if results[i] != nil {
			slog.Debug("batch answer item failed", "question_id", it.QuestionID, "err", results[i])
		}
	}
	return results, nil
}

// AnswerOf devuelve la vista de la respuesta. Sin respuesta: confidence 0.
func (r *Registry) AnswerOf(ctx context.Context, questionID uint64) (domain.AnswerView, error) {
	var view domain.AnswerView
	err := r.run.Store().Atomic(ctx, func(tx ports.RecordTx) error {
		v, err := View(ctx, tx, questionID)
		view = v
		return err
	})
	if err != nil {
		return domain.AnswerView{}, fmt.Errorf("oracle.AnswerOf: question %d: %w", questionID, err)
	}
	return view, nil
}

// View lee la respuesta dentro de una transacción existente.
// La usa settlement para resolver en la misma transacción.
func View(ctx context.Context, tx ports.OracleRecords, questionID uint64) (domain.AnswerView, error) {
	q, err := tx.Question(ctx, questionID)
	if err != nil {
		return domain.AnswerView{}, err
	}
	if !q.Answered() {
		return domain.AnswerView{}, nil
	}
	a, err := tx.Answer(ctx, questionID)
	if err != nil {
		return domain.AnswerView{}, err
	}
	return domain.ViewOf(q, &a), nil
}

// Question devuelve el record de la pregunta.
func (r *Registry) Question(ctx context.Context, id uint64) (domain.Question, error) {
	var q domain.Question
	err := r.run.Store().Atomic(ctx, func(tx ports.RecordTx) error {
		var err error
		q, err = tx.Question(ctx, id)
		return err
	})
	if err != nil {
		return domain.Question{}, fmt.Errorf("oracle.Question: %d: %w", id, err)
	}
	return q, nil
}

// State devuelve el record singleton del oráculo.
func (r *Registry) State(ctx context.Context) (domain.OracleState, error) {
	var st domain.OracleState
	err := r.run.Store().Atomic(ctx, func(tx ports.RecordTx) error {
		var err error
		st, err = tx.Oracle(ctx)
		return err
	})
	if err != nil {
		return domain.OracleState{}, fmt.Errorf("oracle.State: %w", err)
	}
	return st, nil
}

// Refund devuelve el bounty de una pregunta sin respuesta pasado deadline + GracePeriod.
func (r *Registry) Refund(ctx context.Context, requester string, questionID uint64) error {
	now := r.clock.Now()
	err := r.run.Run(ctx, lockKey, func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		q, err := tx.Question(ctx, questionID)
		if err != nil {
			return nil, err
		}
		switch {
		case requester == "" || requester != q.Requester:
			return nil, domain.ErrUnauthorized
		case q.Refunded:
			return nil, domain.ErrAlreadyRefunded
		case q.Status != domain.AnswerPending:
			return nil, domain.ErrAlreadyAnswered
		case now.Before(q.RefundOpensAt()):
			return nil, domain.ErrTooEarly
		}

		q.Refunded = true
		if err := tx.SaveQuestion(ctx, q); err != nil {
			return nil, err
		}
		if err := tx.Transfer(ctx, domain.OracleEscrow, domain.ParticipantAccount(requester), q.Bounty); err != nil {
			return nil, err
		}

		ev := domain.NewEvent(domain.EventBountyRefunded, now)
		ev.QuestionID = questionID
		ev.Actor = requester
		ev.Amount = q.Bounty
		return []domain.Event{ev}, nil
	})
	if err != nil {
		return fmt.Errorf("oracle.Refund: question %d: %w", questionID, err)
	}
	return nil
}

// WithdrawProvider transfiere al provider todo su saldo acumulado.
func (r *Registry) WithdrawProvider(ctx context.Context, signer string) (uint64, error) {
	now := r.clock.Now()
	var amount uint64
	err := r.run.Run(ctx, lockKey, func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		st, err := tx.Oracle(ctx)
		if err != nil {
			return nil, err
		}
		if signer == "" || signer != st.Provider {
			return nil, domain.ErrUnauthorized
		}
		if st.ProviderBalance == 0 {
			return nil, domain.ErrNoBalance
		}
		amount = st.ProviderBalance
		st.ProviderBalance = 0
		if err := tx.SaveOracle(ctx, st); err != nil {
			return nil, err
		}
		if err := tx.Transfer(ctx, domain.OracleEscrow, domain.ParticipantAccount(signer), amount); err != nil {
			return nil, err
		}

		ev := domain.NewEvent(domain.EventProviderWithdrawn, now)
		ev.Actor = signer
		ev.Amount = amount
		return []domain.Event{ev}, nil
	})
	if err != nil {
		return 0, fmt.Errorf("oracle.WithdrawProvider: %w", err)
	}
	return amount, nil
}

// SetFee cambia el bounty de las preguntas futuras. Solo la autoridad.
func (r *Registry) SetFee(ctx context.Context, signer string, fee uint64) error {
	err := r.update(ctx, signer, func(st *domain.OracleState, ev *domain.Event) {
		st.Fee = fee
		ev.Amount = fee
	})
	if err != nil {
		return fmt.Errorf("oracle.SetFee: %w", err)
	}
	return nil
}

// SetProvider cambia la identidad autorizada a responder. Solo la autoridad.
// El saldo acumulado sigue siendo retirable por el nuevo provider.
func (r *Registry) SetProvider(ctx context.Context, signer, provider string) error {
	if provider == "" {
		return fmt.Errorf("oracle.SetProvider: %w", domain.ErrInvalidIdentity)
	}
	err := r.update(ctx, signer, func(st *domain.OracleState, ev *domain.Event) {
		st.Provider = provider
		ev.Ref = provider
	})
	if err != nil {
		return fmt.Errorf("oracle.SetProvider: %w", err)
	}
	return nil
}

func (r *Registry) update(ctx context.Context, signer string, apply func(*domain.OracleState, *domain.Event)) error {
	now := r.clock.Now()
	return r.run.Run(ctx, lockKey, func(ctx context.Context, tx ports.RecordTx) ([]domain.Event, error) {
		st, err := tx.Oracle(ctx)
		if err != nil {
			return nil, err
		}
		if signer == "" || signer != st.Authority {
			return nil, domain.ErrUnauthorized
		}
		ev := domain.NewEvent(domain.EventOracleUpdated, now)
		ev.Actor = signer
		apply(&st, &ev)
		return []domain.Event{ev}, tx.SaveOracle(ctx, st)
	})
}
