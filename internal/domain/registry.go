package domain

import "time"

// Registry es el record de configuración de la deployment de mercados:
// autoridad, fee vigente, contador de IDs y fees acumulados en el vault.
type Registry struct {
	Authority       string    `json:"authority"`
	FeeBps          uint16    `json:"fee_bps"`
	MarketCounter   uint64    `json:"market_counter"`
	AccumulatedFees uint64    `json:"accumulated_fees"`
	CreatedAt       time.Time `json:"created_at"`
}

// NextMarketID incrementa el contador (checked) y devuelve el nuevo ID.
// Los IDs empiezan en 1; 0 significa "sin mercado".
func (r *Registry) NextMarketID() (uint64, error) {
	id, err := CheckedAdd(r.MarketCounter, 1)
	if err != nil {
		return 0, err
	}
	r.MarketCounter = id
	return id, nil
}

// Authorize devuelve ErrUnauthorized si signer no es la autoridad.
func (r Registry) Authorize(signer string) error {
	if signer == "" || signer != r.Authority {
		return ErrUnauthorized
	}
	return nil
}
