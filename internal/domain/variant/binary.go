package variant

import (
	"time"

	"github.com/alejandrodnm/polysettle/internal/domain"
)

// Binary: YES/NO sobre una respuesta booleana.
type Binary struct{}

func (Binary) Variant() domain.Variant { return domain.VariantBinary }

func (Binary) Sides(domain.MarketParams) int { return 2 }

func (Binary) Validate(p domain.MarketParams, now time.Time) error {
	return validateCommon(p, now)
}

func (Binary) Accepting(m domain.Market, now time.Time) error {
	return activeBefore(m, m.Deadline, now)
}

func (Binary) Gate(m domain.Market) error {
	return requireStatus(m, domain.StatusActive, domain.ErrMarketNotActive)
}

func (Binary) WinningSide(_ domain.Market, a domain.AnswerView) (int, error) {
	return boolSide(a), nil
}

func (Binary) Cancellable() bool { return true }

func (Binary) Formula() domain.PayoutFormula { return domain.ProportionalOfTotal }
