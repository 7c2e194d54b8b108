package domain

import "time"

// FacilitatorState es el record singleton del splitter de fees de pagos.
type FacilitatorState struct {
	Authority       string    `json:"authority"`
	FeeBps          uint16    `json:"fee_bps"`
	AccumulatedFees uint64    `json:"accumulated_fees"`
	TotalSettled    uint64    `json:"total_settled"`
	PaymentCount    uint64    `json:"payment_count"`
	CreatedAt       time.Time `json:"created_at"`
}

func (s FacilitatorState) Authorize(signer string) error {
	if signer == "" || signer != s.Authority {
		return ErrUnauthorized
	}
	return nil
}

// PaymentRequest es un pago directo payer → recipient.
type PaymentRequest struct {
	ID        string `json:"id"`
	Payer     string `json:"payer"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

func (r PaymentRequest) Validate() error {
	switch {
	case r.ID == "":
		return ErrInvalidPaymentID
	case r.Payer == "" || r.Recipient == "":
		return ErrInvalidIdentity
	case r.Amount == 0:
		return ErrZeroAmount
	}
	return nil
}

// Payment es el record de un pago liquidado. Su key es el ID del pago,
// así que crearlo dos veces falla.
type Payment struct {
	ID        string    `json:"id"`
	Payer     string    `json:"payer"`
	Recipient string    `json:"recipient"`
	Amount    uint64    `json:"amount"`
	Fee       uint64    `json:"fee"`
	Net       uint64    `json:"net"`
	SettledAt time.Time `json:"settled_at"`
}
