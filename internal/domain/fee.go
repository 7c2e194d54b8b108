package domain

import (
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"
)

const (
	BasisPointDenom = 10_000

	// MaxFeeBps es el techo configurable de fee (10%).
	MaxFeeBps uint16 = 1_000
)

var bpsDenom = uint256.NewInt(BasisPointDenom)

// ComputeFee separa gross en (net, fee) con fee = floor(gross*rateBps/10000).
// La multiplicación se hace en 256 bits: gross cerca de 2^64 no desborda.
func ComputeFee(gross uint64, rateBps uint16) (net, fee uint64, err error) {
	if rateBps > BasisPointDenom {
		return 0, 0, ErrInvalidFeeRate
	}

	wide, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(gross), uint256.NewInt(uint64(rateBps)))
	if overflow {
		return 0, 0, ErrOverflow
	}
	wide.Div(wide, bpsDenom)
	if !wide.IsUint64() {
		return 0, 0, ErrOverflow
	}

	fee = wide.Uint64()
	net, err = CheckedSub(gross, fee)
	if err != nil {
		return 0, 0, err
	}
	return net, fee, nil
}

// ValidateFeeBps rechaza tasas por encima del techo de la deployment.
func ValidateFeeBps(bps uint16) error {
	if bps > MaxFeeBps {
		return ErrInvalidFeeRate
	}
	return nil
}

// CheckedAdd suma sin wrap: devuelve ErrOverflow en vez de desbordar.
func CheckedAdd(a, b uint64) (uint64, error) {
	v, overflow := ethmath.SafeAdd(a, b)
	if overflow {
		return 0, ErrOverflow
	}
	return v, nil
}

// CheckedSub resta sin underflow.
func CheckedSub(a, b uint64) (uint64, error) {
	v, overflow := ethmath.SafeSub(a, b)
	if overflow {
		return 0, ErrOverflow
	}
	return v, nil
}

// CheckedSum suma todos los valores con overflow check.
func CheckedSum(values ...uint64) (uint64, error) {
	var total uint64
	for _, v := range values {
		next, err := CheckedAdd(total, v)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}
