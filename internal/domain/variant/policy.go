package variant

import (
	"time"

	"github.com/alejandrodnm/polysettle/internal/domain"
)

// Policy es lo único que distingue a una variante de mercado de otra.
// El motor de settlement es el mismo para todas.
type Policy interface {
	// Variant devuelve el identificador de la variante.
	Variant() domain.Variant

	// Sides devuelve cuántos lados tiene el pool para estos parámetros.
	Sides(p domain.MarketParams) int

	// Validate revisa los parámetros de creación.
	Validate(p domain.MarketParams, now time.Time) error

	// Accepting devuelve nil si el mercado acepta stakes en now.
	Accepting(m domain.Market, now time.Time) error

	// Gate es la precondición de estado extra antes de resolver.
	Gate(m domain.Market) error

	// WinningSide deriva el lado ganador de la respuesta del oráculo.
	WinningSide(m domain.Market, answer domain.AnswerView) (int, error)

	// Cancellable indica si la variante admite cancel por oráculo mudo.
	Cancellable() bool

	// Formula es la fórmula de payout canónica de la variante.
	Formula() domain.PayoutFormula
}

// Periodic la implementan las variantes que se resuelven periodo a periodo.
type Periodic interface {
	Policy
	PeriodResult(answer domain.AnswerView) uint64
}

// Registry mantiene las políticas indexadas por variante.
type Registry map[domain.Variant]Policy

// NewRegistry crea un registry con las políticas dadas.
func NewRegistry(policies ...Policy) Registry {
	r := make(Registry, len(policies))
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// Default devuelve las cinco variantes soportadas.
func Default() Registry {
	return NewRegistry(Binary{}, MultiOutcome{}, Range{}, TimeSeries{}, Conditional{})
}

// Register añade (o reemplaza) una política.
func (r Registry) Register(p Policy) {
	r[p.Variant()] = p
}

// Get devuelve la política de la variante o ErrInvalidVariant.
func (r Registry) Get(v domain.Variant) (Policy, error) {
	p, ok := r[v]
	if !ok {
		return nil, domain.ErrInvalidVariant
	}
	return p, nil
}

// --- helpers compartidos ---

func validateCommon(p domain.MarketParams, now time.Time) error {
	if err := domain.ValidateQuestion(p.Question); err != nil {
		return err
	}
	if !p.Deadline.After(now) {
		return domain.ErrInvalidDeadline
	}
	if p.QuestionID == 0 {
		return domain.ErrMissingQuestion
	}
	return nil
}

// activeBefore acepta stakes mientras el mercado esté Active y antes de deadline.
func activeBefore(m domain.Market, deadline, now time.Time) error {
	if m.Status != domain.StatusActive {
		return domain.ErrMarketNotActive
	}
	if !now.Before(deadline) {
		return domain.ErrMarketExpired
	}
	return nil
}

func requireStatus(m domain.Market, want domain.MarketStatus, otherwise error) error {
	switch {
	case m.Status.Terminal():
		return domain.ErrAlreadyResolved
	case m.Status != want:
		return otherwise
	}
	return nil
}

func boolSide(a domain.AnswerView) int {
	if a.Bool {
		return domain.SideYes
	}
	return domain.SideNo
}
