package variant

import (
	"time"

	"github.com/alejandrodnm/polysettle/internal/domain"
)

// MultiOutcome: N etiquetas, la respuesta numérica es el índice ganador.
type MultiOutcome struct{}

func (MultiOutcome) Variant() domain.Variant { return domain.VariantMultiOutcome }

func (MultiOutcome) Sides(p domain.MarketParams) int { return len(p.Labels) }

func (MultiOutcome) Validate(p domain.MarketParams, now time.Time) error {
	if err := validateCommon(p, now); err != nil {
		return err
	}
	if len(p.Labels) < domain.MinOutcomes || len(p.Labels) > domain.MaxOutcomes {
		return domain.ErrInvalidOutcomeCount
	}
	for _, l := range p.Labels {
		if l == "" || len(l) > domain.MaxLabelLen {
			return domain.ErrInvalidOutcomeLabel
		}
	}
	return nil
}

func (MultiOutcome) Accepting(m domain.Market, now time.Time) error {
	return activeBefore(m, m.Deadline, now)
}

func (MultiOutcome) Gate(m domain.Market) error {
	return requireStatus(m, domain.StatusActive, domain.ErrMarketNotActive)
}

func (MultiOutcome) WinningSide(m domain.Market, a domain.AnswerView) (int, error) {
	if a.Numeric >= uint64(len(m.Pools)) {
		return domain.NoSide, domain.ErrInvalidOutcome
	}
	return int(a.Numeric), nil
}

func (MultiOutcome) Cancellable() bool { return false }

func (MultiOutcome) Formula() domain.PayoutFormula { return domain.ProportionalOfTotal }
