// Package fixedmath provides the deterministic scaled-integer arithmetic
// shared by the staking and lending engines. Rates are expressed in basis
// points (base 10_000) and USD values carry an 1e18 scale. Division truncates
// toward zero everywhere; the truncation remainder systematically favours the
// protocol over the caller and tests depend on that policy.
package fixedmath

import (
	"math/big"

	"github.com/holiman/uint256"

	"defiledger/native/common"
)

// SecondsPerYear is the accrual denominator for annualised rates.
const SecondsPerYear = 31_536_000

// MaxBps is the largest admissible basis-point rate (100%).
const MaxBps = 10_000

var (
	// BpsDenominator converts basis points back to a unit ratio.
	BpsDenominator = big.NewInt(MaxBps)
	// ValueScale is the 1e18 fixed-point scale applied to USD values.
	ValueScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

// ErrValueOutOfRange is returned when a value escapes the 256-bit word every
// monetary quantity must fit. Arithmetic never wraps; it fails.
var ErrValueOutOfRange = common.Overflow("fixedmath: value exceeds 256-bit bound")

// ErrNegativeValue is returned when a negative quantity reaches an operation
// defined only over non-negative amounts.
var ErrNegativeValue = common.Validation("fixedmath: negative value")

// ErrDivisionByZero is returned for a zero denominator.
var ErrDivisionByZero = common.Validation("fixedmath: division by zero")

// CheckRange verifies v is a non-negative quantity representable in 256 bits.
func CheckRange(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return ErrNegativeValue
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return ErrValueOutOfRange
	}
	return nil
}

// MulBps scales amount by a basis-point rate, truncating toward zero.
func MulBps(amount *big.Int, bps uint64) (*big.Int, error) {
	if err := CheckRange(amount); err != nil {
		return nil, err
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	out.Quo(out, BpsDenominator)
	if err := CheckRange(out); err != nil {
		return nil, err
	}
	return out, nil
}

// MulDiv computes a*b/den with truncation, failing on range violations rather
// than wrapping.
func MulDiv(a, b, den *big.Int) (*big.Int, error) {
	if err := CheckRange(a); err != nil {
		return nil, err
	}
	if err := CheckRange(b); err != nil {
		return nil, err
	}
	if den == nil || den.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	if den.Sign() < 0 {
		return nil, ErrNegativeValue
	}
	out := new(big.Int).Mul(a, b)
	out.Quo(out, den)
	if err := CheckRange(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Clone returns an independent copy of v, treating nil as zero.
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// IsPositive reports whether v is a strictly positive quantity.
func IsPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
