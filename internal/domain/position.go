package domain

import "time"

// Position es el stake acumulado de un participante en un mercado.
type Position struct {
	MarketID    uint64    `json:"market_id"`
	Participant string    `json:"participant"`
	Stakes      []uint64  `json:"stakes"`
	Claimed     bool      `json:"claimed"`
	ClaimedAt   time.Time `json:"claimed_at,omitempty"`
	Payout      uint64    `json:"payout,omitempty"`
}

func NewPosition(marketID uint64, participant string, sides int) Position {
	return Position{
		MarketID:    marketID,
		Participant: participant,
		Stakes:      make([]uint64, sides),
	}
}

// RecordStake suma net al lado dado. El slice crece si hace falta.
func (p *Position) RecordStake(side int, net uint64) error {
	if side < 0 {
		return ErrInvalidSide
	}
	if side >= len(p.Stakes) {
		grown := make([]uint64, side+1)
		copy(grown, p.Stakes)
		p.Stakes = grown
	}
	v, err := CheckedAdd(p.Stakes[side], net)
	if err != nil {
		return err
	}
	p.Stakes[side] = v
	return nil
}

// StakeOn devuelve 0 para lados fuera de rango.
func (p Position) StakeOn(side int) uint64 {
	if side < 0 || side >= len(p.Stakes) {
		return 0
	}
	return p.Stakes[side]
}

func (p Position) Total() (uint64, error) {
	return CheckedSum(p.Stakes...)
}

// MarkClaimed es el único punto que autoriza liberar fondos.
// Debe aplicarse antes de cualquier transferencia.
func (p *Position) MarkClaimed(at time.Time) error {
	if p.Claimed {
		return ErrAlreadyClaimed
	}
	p.Claimed = true
	p.ClaimedAt = at
	return nil
}
