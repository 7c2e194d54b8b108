package ports

import (
	"context"

	"github.com/alejandrodnm/polysettle/internal/domain"
)

// RecordStore es el store key-addressed donde viven todos los records.
// Cada operación pública del motor corre dentro de un Atomic: o se aplica
// entera (records, transferencias y eventos) o no se aplica nada.
type RecordStore interface {
	// Atomic ejecuta fn en una transacción. Si fn devuelve error, rollback.
	Atomic(ctx context.Context, fn func(tx RecordTx) error) error

	// ListMarkets devuelve todos los mercados ordenados por ID.
	ListMarkets(ctx context.Context) ([]domain.Market, error)

	// Events devuelve el log de eventos de un mercado en orden de escritura.
	Events(ctx context.Context, marketID uint64) ([]domain.Event, error)

	// Balance devuelve el saldo de una cuenta del ledger.
	Balance(ctx context.Context, account string) (uint64, error)

	// Deposit acredita fondos externos en una cuenta (lado host).
	Deposit(ctx context.Context, account string, amount uint64) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}

// RecordTx es la vista transaccional del store.
type RecordTx interface {
	MarketRecords
	OracleRecords
	FacilitatorRecords
	Ledger
	EventLog
}

// MarketRecords: registry, mercados y posiciones.
// Los Create son exclusivos: fallan con domain.ErrAlreadyExists.
// Los getters devuelven domain.ErrNotFound si la key no existe.
type MarketRecords interface {
	CreateRegistry(ctx context.Context, r domain.Registry) error
	Registry(ctx context.Context) (domain.Registry, error)
	SaveRegistry(ctx context.Context, r domain.Registry) error

	CreateMarket(ctx context.Context, m domain.Market) error
	Market(ctx context.Context, id uint64) (domain.Market, error)
	SaveMarket(ctx context.Context, m domain.Market) error

	Position(ctx context.Context, marketID uint64, participant string) (domain.Position, error)
	SavePosition(ctx context.Context, p domain.Position) error
}

// OracleRecords: estado del oráculo, preguntas y respuestas.
type OracleRecords interface {
	CreateOracle(ctx context.Context, s domain.OracleState) error
	Oracle(ctx context.Context) (domain.OracleState, error)
	SaveOracle(ctx context.Context, s domain.OracleState) error

	CreateQuestion(ctx context.Context, q domain.Question) error
	Question(ctx context.Context, id uint64) (domain.Question, error)
	SaveQuestion(ctx context.Context, q domain.Question) error

	CreateAnswer(ctx context.Context, a domain.Answer) error
	Answer(ctx context.Context, questionID uint64) (domain.Answer, error)
}

// FacilitatorRecords: estado del facilitator y pagos usados.
type FacilitatorRecords interface {
	CreateFacilitator(ctx context.Context, s domain.FacilitatorState) error
	Facilitator(ctx context.Context) (domain.FacilitatorState, error)
	SaveFacilitator(ctx context.Context, s domain.FacilitatorState) error

	// CreatePayment es el guard de dedupe: un payment ID se usa una sola vez.
	CreatePayment(ctx context.Context, p domain.Payment) error
}

// Ledger mueve saldo entre cuentas dentro de la transacción.
type Ledger interface {
	// Transfer falla con domain.ErrInsufficientFunds si from no alcanza.
	Transfer(ctx context.Context, from, to string, amount uint64) error
}

// EventLog persiste eventos de auditoría.
type EventLog interface {
	AppendEvent(ctx context.Context, ev domain.Event) error
}
