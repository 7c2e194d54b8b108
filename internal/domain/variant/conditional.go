package variant

import (
	"time"

	"github.com/alejandrodnm/polysettle/internal/domain"
)

// Conditional: mercado YES/NO que solo se resuelve si el padre terminó en
// RequiredParentSide. El check del padre es un paso aparte (CheckParent).
type Conditional struct{}

func (Conditional) Variant() domain.Variant { return domain.VariantConditional }

func (Conditional) Sides(domain.MarketParams) int { return 2 }

func (Conditional) Validate(p domain.MarketParams, now time.Time) error {
	if err := validateCommon(p, now); err != nil {
		return err
	}
	if p.ParentID == 0 || p.RequiredParentSide < 0 {
		return domain.ErrInvalidParent
	}
	return nil
}

func (Conditional) Accepting(m domain.Market, now time.Time) error {
	return activeBefore(m, m.Deadline, now)
}

func (Conditional) Gate(m domain.Market) error {
	return requireStatus(m, domain.StatusConditionMet, domain.ErrConditionNotChecked)
}

func (Conditional) WinningSide(_ domain.Market, a domain.AnswerView) (int, error) {
	return boolSide(a), nil
}

func (Conditional) Cancellable() bool { return false }

func (Conditional) Formula() domain.PayoutFormula { return domain.StakePlusShare }

// ConditionMet evalúa el estado terminal del padre contra el lado requerido.
// Un padre cancelado o sin condición cuenta como no cumplido.
func ConditionMet(child, parent domain.Market) (bool, error) {
	if !parent.Status.Terminal() {
		return false, domain.ErrParentNotResolved
	}
	return parent.Status == domain.StatusResolved && parent.WinningSide == child.ParentSide, nil
}
