package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/alejandrodnm/polysettle/internal/domain"
	"github.com/alejandrodnm/polysettle/internal/ports"
)

// rawTx es lo mínimo que cada backend SQL implementa dentro de una transacción.
// El resto (tipos, JSON, ledger) es común y vive en recordTx.
type rawTx interface {
	// get devuelve domain.ErrNotFound si la key no existe.
	get(ctx context.Context, key string) ([]byte, error)
	// insert devuelve domain.ErrAlreadyExists si la key ya existe.
	insert(ctx context.Context, key, kind string, body []byte) error
	upsert(ctx context.Context, key, kind string, body []byte) error
	appendEvent(ctx context.Context, ev domain.Event, body []byte) error
}

type recordTx struct {
	raw rawTx
}

var _ ports.RecordTx = (*recordTx)(nil)

func load[T any](ctx context.Context, raw rawTx, k domain.Key) (T, error) {
	var v T
	body, err := raw.get(ctx, k.String())
	if err != nil {
		return v, fmt.Errorf("storage: get %s: %w", k, err)
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("storage: decode %s: %w", k, err)
	}
	return v, nil
}

func create(ctx context.Context, raw rawTx, k domain.Key, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", k, err)
	}
	if err := raw.insert(ctx, k.String(), string(k.Namespace), body); err != nil {
		return fmt.Errorf("storage: create %s: %w", k, err)
	}
	return nil
}

func save(ctx context.Context, raw rawTx, k domain.Key, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", k, err)
	}
	if err := raw.upsert(ctx, k.String(), string(k.Namespace), body); err != nil {
		return fmt.Errorf("storage: save %s: %w", k, err)
	}
	return nil
}

// --- MarketRecords ---

func (t *recordTx) CreateRegistry(ctx context.Context, r domain.Registry) error {
	return create(ctx, t.raw, domain.RegistryKey(), r)
}

func (t *recordTx) Registry(ctx context.Context) (domain.Registry, error) {
	return load[domain.Registry](ctx, t.raw, domain.RegistryKey())
}

func (t *recordTx) SaveRegistry(ctx context.Context, r domain.Registry) error {
	return save(ctx, t.raw, domain.RegistryKey(), r)
}

func (t *recordTx) CreateMarket(ctx context.Context, m domain.Market) error {
	return create(ctx, t.raw, domain.MarketKey(m.ID), m)
}

func (t *recordTx) Market(ctx context.Context, id uint64) (domain.Market, error) {
	return load[domain.Market](ctx, t.raw, domain.MarketKey(id))
}

func (t *recordTx) SaveMarket(ctx context.Context, m domain.Market) error {
	return save(ctx, t.raw, domain.MarketKey(m.ID), m)
}

func (t *recordTx) Position(ctx context.Context, marketID uint64, participant string) (domain.Position, error) {
	return load[domain.Position](ctx, t.raw, domain.PositionKey(marketID, participant))
}

func (t *recordTx) SavePosition(ctx context.Context, p domain.Position) error {
	return save(ctx, t.raw, domain.PositionKey(p.MarketID, p.Participant), p)
}

// --- OracleRecords ---

func (t *recordTx) CreateOracle(ctx context.Context, s domain.OracleState) error {
	return create(ctx, t.raw, domain.OracleKey(), s)
}

func (t *recordTx) Oracle(ctx context.Context) (domain.OracleState, error) {
	return load[domain.OracleState](ctx, t.raw, domain.OracleKey())
}

func (t *recordTx) SaveOracle(ctx context.Context, s domain.OracleState) error {
	return save(ctx, t.raw, domain.OracleKey(), s)
}

func (t *recordTx) CreateQuestion(ctx context.Context, q domain.Question) error {
	return create(ctx, t.raw, domain.QuestionKey(q.ID), q)
}

func (t *recordTx) Question(ctx context.Context, id uint64) (domain.Question, error) {
	return load[domain.Question](ctx, t.raw, domain.QuestionKey(id))
}

func (t *recordTx) SaveQuestion(ctx context.Context, q domain.Question) error {
	return save(ctx, t.raw, domain.QuestionKey(q.ID), q)
}

func (t *recordTx) CreateAnswer(ctx context.Context, a domain.Answer) error {
	return create(ctx, t.raw, domain.AnswerKey(a.QuestionID), a)
}

func (t *recordTx) Answer(ctx context.Context, questionID uint64) (domain.Answer, error) {
	return load[domain.Answer](ctx, t.raw, domain.AnswerKey(questionID))
}

// --- FacilitatorRecords ---

func (t *recordTx) CreateFacilitator(ctx context.Context, s domain.FacilitatorState) error {
	return create(ctx, t.raw, domain.FacilitatorKey(), s)
}

func (t *recordTx) Facilitator(ctx context.Context) (domain.FacilitatorState, error) {
	return load[domain.FacilitatorState](ctx, t.raw, domain.FacilitatorKey())
}

func (t *recordTx) SaveFacilitator(ctx context.Context, s domain.FacilitatorState) error {
	return save(ctx, t.raw, domain.FacilitatorKey(), s)
}

func (t *recordTx) CreatePayment(ctx context.Context, p domain.Payment) error {
	return create(ctx, t.raw, domain.PaymentKey(p.ID), p)
}

// --- Ledger ---

type balanceRecord struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

func (t *recordTx) balance(ctx context.Context, account string) (uint64, error) {
	rec, err := load[balanceRecord](ctx, t.raw, domain.BalanceKey(account))
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Amount, nil
}

func (t *recordTx) setBalance(ctx context.Context, account string, amount uint64) error {
	return save(ctx, t.raw, domain.BalanceKey(account), balanceRecord{Account: account, Amount: amount})
}

func (t *recordTx) credit(ctx context.Context, account string, amount uint64) error {
	bal, err := t.balance(ctx, account)
	if err != nil {
		return err
	}
	next, err := domain.CheckedAdd(bal, amount)
	if err != nil {
		return fmt.Errorf("storage: credit %s: %w", account, err)
	}
	return t.setBalance(ctx, account, next)
}

func (t *recordTx) Transfer(ctx context.Context, from, to string, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	bal, err := t.balance(ctx, from)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("storage: transfer %s -> %s (%d > %d): %w", from, to, amount, bal, domain.ErrInsufficientFunds)
	}
	if err := t.credit(ctx, to, amount); err != nil {
		return err
	}
	return t.setBalance(ctx, from, bal-amount)
}

// --- EventLog ---

func (t *recordTx) AppendEvent(ctx context.Context, ev domain.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("storage: encode event %s: %w", ev.ID, err)
	}
	if err := t.raw.appendEvent(ctx, ev, body); err != nil {
		return fmt.Errorf("storage: append event %s: %w", ev.Kind, err)
	}
	return nil
}

// --- lectura fuera de transacción ---

func decodeMarkets(bodies [][]byte) ([]domain.Market, error) {
	markets := make([]domain.Market, 0, len(bodies))
	for _, b := range bodies {
		var m domain.Market
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("storage: decode market: %w", err)
		}
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].ID < markets[j].ID })
	return markets, nil
}

func decodeEvents(bodies [][]byte) ([]domain.Event, error) {
	events := make([]domain.Event, 0, len(bodies))
	for _, b := range bodies {
		var ev domain.Event
		if err := json.Unmarshal(b, &ev); err != nil {
			return nil, fmt.Errorf("storage: decode event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}
