package variant

import (
	"time"

	"github.com/alejandrodnm/polysettle/internal/domain"
)

// Range: gana "in range" si Lower <= respuesta <= Upper.
type Range struct{}

func (Range) Variant() domain.Variant { return domain.VariantRange }

func (Range) Sides(domain.MarketParams) int { return 2 }

func (Range) Validate(p domain.MarketParams, now time.Time) error {
	if err := validateCommon(p, now); err != nil {
		return err
	}
	if p.Upper <= p.Lower {
		return domain.ErrInvalidRange
	}
	return nil
}

func (Range) Accepting(m domain.Market, now time.Time) error {
	return activeBefore(m, m.Deadline, now)
}

func (Range) Gate(m domain.Market) error {
	return requireStatus(m, domain.StatusActive, domain.ErrMarketNotActive)
}

func (Range) WinningSide(m domain.Market, a domain.AnswerView) (int, error) {
	if a.Numeric >= m.Lower && a.Numeric <= m.Upper {
		return domain.SideInRange, nil
	}
	return domain.SideOutOfRange, nil
}

func (Range) Cancellable() bool { return false }

func (Range) Formula() domain.PayoutFormula { return domain.StakePlusShare }
