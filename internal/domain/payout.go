package domain

import "github.com/holiman/uint256"

// PayoutFormula selecciona cómo se reparte el pool entre ganadores.
// Con pools enteros y división floor ambas dan el mismo resultado; se
// mantienen separadas porque cada variante declara la suya.
type PayoutFormula int

const (
	// ProportionalOfTotal: s * (W + L) / W.
	ProportionalOfTotal PayoutFormula = iota
	// StakePlusShare: s + s * L / W.
	StakePlusShare
)

func (f PayoutFormula) String() string {
	switch f {
	case ProportionalOfTotal:
		return "proportional_of_total"
	case StakePlusShare:
		return "stake_plus_share"
	default:
		return "unknown"
	}
}

// Apply calcula el payout para stake s sobre pool ganador w y perdedor l.
// Intermedios en 256 bits; el resto de la división queda como dust.
func (f PayoutFormula) Apply(s, w, l uint64) (uint64, error) {
	if w == 0 || s > w {
		return 0, ErrNotWinner
	}
	S, W, L := uint256.NewInt(s), uint256.NewInt(w), uint256.NewInt(l)

	var out *uint256.Int
	switch f {
	case ProportionalOfTotal:
		total := new(uint256.Int).Add(W, L)
		out = new(uint256.Int).Mul(S, total)
		out.Div(out, W)
	case StakePlusShare:
		out = new(uint256.Int).Mul(S, L)
		out.Div(out, W)
		out.Add(out, S)
	default:
		return 0, ErrInvalidVariant
	}

	if !out.IsUint64() {
		return 0, ErrOverflow
	}
	return out.Uint64(), nil
}

// ComputePayout devuelve cuánto puede reclamar p en m. No muta nada.
//
//   - Resolved: payout parimutuel sobre el lado ganador.
//   - Resolved sin stake en el lado ganador (W == 0): refund del total.
//   - Cancelled / ConditionNotMet: refund del total (net de fees).
func ComputePayout(m Market, p Position, f PayoutFormula) (uint64, error) {
	switch {
	case m.Status.Refunds():
		return refund(p)
	case m.Status != StatusResolved:
		return 0, ErrNotSettled
	}

	win := m.WinningSide
	if win < 0 || win >= len(m.Pools) {
		return 0, ErrNotSettled
	}

	w := m.Pools[win]
	if w == 0 {
		return refund(p)
	}

	s := p.StakeOn(win)
	if s == 0 {
		total, err := p.Total()
		if err != nil {
			return 0, err
		}
		if total == 0 {
			return 0, ErrNoPosition
		}
		return 0, ErrNotWinner
	}

	l, err := m.LosingPool(win)
	if err != nil {
		return 0, err
	}
	return f.Apply(s, w, l)
}

func refund(p Position) (uint64, error) {
	total, err := p.Total()
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, ErrNoPosition
	}
	return total, nil
}
