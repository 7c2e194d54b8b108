package domain

// AcceptStake aplica una apuesta al pool: calcula el fee, suma net al lado
// y fee a TotalFees. Todo o nada: si algo desborda el mercado queda intacto.
// Las precondiciones de estado y tiempo son de la política de la variante.
func (m *Market) AcceptStake(side int, gross uint64) (net, fee uint64, err error) {
	if gross == 0 {
		return 0, 0, ErrZeroAmount
	}
	if side < 0 || side >= len(m.Pools) {
		return 0, 0, ErrInvalidSide
	}

	net, fee, err = ComputeFee(gross, m.FeeBps)
	if err != nil {
		return 0, 0, err
	}
	pool, err := CheckedAdd(m.Pools[side], net)
	if err != nil {
		return 0, 0, err
	}
	fees, err := CheckedAdd(m.TotalFees, fee)
	if err != nil {
		return 0, 0, err
	}

	m.Pools[side] = pool
	m.TotalFees = fees
	return net, fee, nil
}
