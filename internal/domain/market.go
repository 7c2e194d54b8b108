package domain

import (
	"time"
	"unicode/utf8"
)

// Variant identifica la política de settlement de un mercado.
type Variant string

const (
	VariantBinary       Variant = "binary"
	VariantMultiOutcome Variant = "multi_outcome"
	VariantRange        Variant = "range"
	VariantTimeSeries   Variant = "time_series"
	VariantConditional  Variant = "conditional"
)

// MarketStatus es el estado del ciclo de vida. Las transiciones son monótonas.
type MarketStatus string

const (
	StatusActive          MarketStatus = "active"
	StatusConditionMet    MarketStatus = "condition_met"
	StatusConditionNotMet MarketStatus = "condition_not_met"
	StatusResolved        MarketStatus = "resolved"
	StatusCancelled       MarketStatus = "cancelled"
)

// Terminal indica que el mercado ya no cambia de estado.
func (s MarketStatus) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled || s == StatusConditionNotMet
}

// Refunds indica un estado terminal que devuelve principal en vez de pagar.
func (s MarketStatus) Refunds() bool {
	return s == StatusCancelled || s == StatusConditionNotMet
}

const (
	MaxQuestionLen = 500
	MinOutcomes    = 2
	MaxOutcomes    = 10
	MaxLabelLen    = 100
	MinPeriods     = 2
	MaxPeriods     = 12

	// GracePeriod separa el deadline de la ventana de cancel/refund.
	GracePeriod = 7 * 24 * time.Hour

	NoSide = -1
)

// Lados con nombre para los mercados de dos lados.
const (
	SideYes        = 0
	SideNo         = 1
	SideInRange    = 0
	SideOutOfRange = 1
	SideAllSucceed = 0
	SideNotAll     = 1
)

// Period es un sub-periodo de un mercado time-series.
type Period struct {
	Deadline   time.Time `json:"deadline"`
	QuestionID uint64    `json:"question_id"`
	Result     uint64    `json:"result"`
	Resolved   bool      `json:"resolved"`
}

// PeriodParams define un periodo al crear el mercado.
type PeriodParams struct {
	Deadline   time.Time `json:"deadline"`
	QuestionID uint64    `json:"question_id"`
}

// MarketParams es el input de creación. Cada variante usa su subconjunto.
type MarketParams struct {
	Variant    Variant
	Question   string
	Deadline   time.Time
	QuestionID uint64

	Labels []string // multi-outcome

	Lower uint64 // range, inclusivo
	Upper uint64

	Periods []PeriodParams // time-series

	ParentID           uint64 // conditional
	RequiredParentSide int
}

// Market es el record append-only de un mercado y su pool.
type Market struct {
	ID         uint64       `json:"id"`
	Variant    Variant      `json:"variant"`
	Question   string       `json:"question"`
	Creator    string       `json:"creator"`
	CreatedAt  time.Time    `json:"created_at"`
	Deadline   time.Time    `json:"deadline"`
	QuestionID uint64       `json:"question_id,omitempty"`
	Labels     []string     `json:"labels,omitempty"`
	Lower      uint64       `json:"lower,omitempty"`
	Upper      uint64       `json:"upper,omitempty"`
	Periods    []Period     `json:"periods,omitempty"`
	ParentID   uint64       `json:"parent_id,omitempty"`
	ParentSide int          `json:"parent_side,omitempty"`
	FeeBps     uint16       `json:"fee_bps"`
	Pools      []uint64     `json:"pools"`
	TotalFees  uint64       `json:"total_fees"`
	FeesSwept  bool         `json:"fees_swept"`
	Status     MarketStatus `json:"status"`

	WinningSide int       `json:"winning_side"`
	ResolvedAt  time.Time `json:"resolved_at,omitempty"`
}

// NewMarket inicializa un mercado Active con pools vacíos.
func NewMarket(id uint64, creator string, p MarketParams, sides int, feeBps uint16, now time.Time) Market {
	m := Market{
		ID:          id,
		Variant:     p.Variant,
		Question:    p.Question,
		Creator:     creator,
		CreatedAt:   now,
		Deadline:    p.Deadline,
		QuestionID:  p.QuestionID,
		Labels:      append([]string(nil), p.Labels...),
		Lower:       p.Lower,
		Upper:       p.Upper,
		ParentID:    p.ParentID,
		ParentSide:  p.RequiredParentSide,
		FeeBps:      feeBps,
		Pools:       make([]uint64, sides),
		Status:      StatusActive,
		WinningSide: NoSide,
	}
	for _, pp := range p.Periods {
		m.Periods = append(m.Periods, Period{Deadline: pp.Deadline, QuestionID: pp.QuestionID})
	}
	if len(m.Periods) > 0 {
		m.Deadline = m.Periods[len(m.Periods)-1].Deadline
	}
	return m
}

// ValidateQuestion exige texto no vacío de como mucho MaxQuestionLen bytes.
func ValidateQuestion(q string) error {
	if q == "" || len(q) > MaxQuestionLen || !utf8.ValidString(q) {
		return ErrInvalidQuestion
	}
	return nil
}

// TotalPool suma todos los lados.
func (m Market) TotalPool() (uint64, error) {
	return CheckedSum(m.Pools...)
}

// LosingPool suma todos los lados excepto side.
func (m Market) LosingPool(side int) (uint64, error) {
	var total uint64
	for i, p := range m.Pools {
		if i == side {
			continue
		}
		next, err := CheckedAdd(total, p)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}

// Resolve fija el lado ganador. Solo desde Active o ConditionMet.
func (m *Market) Resolve(side int, at time.Time) error {
	if m.Status.Terminal() {
		return ErrAlreadyResolved
	}
	if m.Status != StatusActive && m.Status != StatusConditionMet {
		return ErrMarketNotActive
	}
	if side < 0 || side >= len(m.Pools) {
		return ErrInvalidOutcome
	}
	m.Status = StatusResolved
	m.WinningSide = side
	m.ResolvedAt = at
	return nil
}

// Cancel pasa un mercado Active a Cancelled (refunds).
func (m *Market) Cancel(at time.Time) error {
	if m.Status.Terminal() {
		return ErrAlreadyResolved
	}
	if m.Status != StatusActive {
		return ErrMarketNotActive
	}
	m.Status = StatusCancelled
	m.ResolvedAt = at
	return nil
}

// ApplyCondition registra el resultado del check contra el mercado padre.
func (m *Market) ApplyCondition(met bool, at time.Time) error {
	if m.Status.Terminal() {
		return ErrAlreadyResolved
	}
	if m.Status != StatusActive {
		return ErrMarketNotActive
	}
	if met {
		m.Status = StatusConditionMet
		return nil
	}
	m.Status = StatusConditionNotMet
	m.ResolvedAt = at
	return nil
}

// ResolvePeriod registra el resultado de un periodo time-series.
func (m *Market) ResolvePeriod(i int, result uint64) error {
	if m.Status.Terminal() {
		return ErrAlreadyResolved
	}
	if i < 0 || i >= len(m.Periods) {
		return ErrInvalidPeriod
	}
	if m.Periods[i].Resolved {
		return ErrAlreadyResolved
	}
	m.Periods[i].Result = result
	m.Periods[i].Resolved = true
	return nil
}

// AllPeriodsResolved es false para mercados sin periodos.
func (m Market) AllPeriodsResolved() bool {
	if len(m.Periods) == 0 {
		return false
	}
	for _, p := range m.Periods {
		if !p.Resolved {
			return false
		}
	}
	return true
}

// SweepFees marca los fees del mercado como transferidos al vault y devuelve el monto.
// Solo tiene efecto una vez y en estado terminal.
func (m *Market) SweepFees() uint64 {
	if m.FeesSwept || !m.Status.Terminal() {
		return 0
	}
	m.FeesSwept = true
	return m.TotalFees
}
