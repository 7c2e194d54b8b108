package variant

import (
	"time"

	"github.com/alejandrodnm/polysettle/internal/domain"
)

// TimeSeries: todo-o-nada sobre 2..12 periodos. Un resultado 0 es fallo;
// el mercado se resuelve cuando todos los periodos tienen resultado.
type TimeSeries struct{}

var _ Periodic = TimeSeries{}

func (TimeSeries) Variant() domain.Variant { return domain.VariantTimeSeries }

func (TimeSeries) Sides(domain.MarketParams) int { return 2 }

func (TimeSeries) Validate(p domain.MarketParams, now time.Time) error {
	if err := domain.ValidateQuestion(p.Question); err != nil {
		return err
	}
	if len(p.Periods) < domain.MinPeriods || len(p.Periods) > domain.MaxPeriods {
		return domain.ErrInvalidPeriodCount
	}
	prev := now
	for i, pp := range p.Periods {
		if pp.QuestionID == 0 {
			return domain.ErrMissingQuestion
		}
		if !pp.Deadline.After(prev) {
			if i == 0 {
				return domain.ErrInvalidDeadline
			}
			return domain.ErrDeadlinesNotAscending
		}
		prev = pp.Deadline
	}
	return nil
}

// Accepting cierra los stakes al primer deadline: después ya hay información.
func (TimeSeries) Accepting(m domain.Market, now time.Time) error {
	if len(m.Periods) == 0 {
		return domain.ErrInvalidPeriodCount
	}
	return activeBefore(m, m.Periods[0].Deadline, now)
}

func (TimeSeries) Gate(m domain.Market) error {
	if err := requireStatus(m, domain.StatusActive, domain.ErrMarketNotActive); err != nil {
		return err
	}
	if !m.AllPeriodsResolved() {
		return domain.ErrTooEarly
	}
	return nil
}

// WinningSide ignora la respuesta: agrega los resultados de los periodos.
func (TimeSeries) WinningSide(m domain.Market, _ domain.AnswerView) (int, error) {
	if !m.AllPeriodsResolved() {
		return domain.NoSide, domain.ErrTooEarly
	}
	for _, p := range m.Periods {
		if p.Result == 0 {
			return domain.SideNotAll, nil
		}
	}
	return domain.SideAllSucceed, nil
}

func (TimeSeries) PeriodResult(a domain.AnswerView) uint64 { return a.Numeric }

func (TimeSeries) Cancellable() bool { return false }

func (TimeSeries) Formula() domain.PayoutFormula { return domain.StakePlusShare }
