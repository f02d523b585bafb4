package fees

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

const (
	// MaxBasisPoints is 100%.
	MaxBasisPoints uint32 = 10_000
	// MaxOperationFeeBasisPoints caps every flat per-operation fee (0.5%).
	MaxOperationFeeBasisPoints uint32 = 50
)

var (
	// ErrFeeTooHigh is returned when a fee exceeds its allowed ceiling.
	ErrFeeTooHigh = errors.New("fees: fee too high")
	// ErrInvalidFee is returned when a percentage string cannot be parsed.
	ErrInvalidFee = errors.New("fees: invalid fee")
)

// Fee is a fixed-point rate expressed in basis points (1/100 of a percent).
type Fee struct {
	BasisPoints uint32 `json:"basis_points"`
}

// FromBasisPoints wraps n without validating it. Callers check the range
// with Check or CheckMax.
func FromBasisPoints(n uint32) Fee {
	return Fee{BasisPoints: n}
}

// CheckMax fails when the fee is above maxBasisPoints.
func (f Fee) CheckMax(maxBasisPoints uint32) error {
	if f.BasisPoints > maxBasisPoints {
		return fmt.Errorf("%w: %d bp > %d bp", ErrFeeTooHigh, f.BasisPoints, maxBasisPoints)
	}
	return nil
}

// Check fails when the fee is above 100%.
func (f Fee) Check() error {
	return f.CheckMax(MaxBasisPoints)
}

// Apply returns floor(amount * bp / 10000). The product is computed in 128
// bits so no amount can overflow.
func (f Fee) Apply(amount uint64) uint64 {
	if amount == 0 || f.BasisPoints == 0 {
		return 0
	}
	hi, lo := bits.Mul64(amount, uint64(f.BasisPoints))
	if hi >= uint64(MaxBasisPoints) {
		// only reachable with an unchecked fee above 100%
		return math.MaxUint64
	}
	quo, _ := bits.Div64(hi, lo, uint64(MaxBasisPoints))
	return quo
}

// String renders the fee as a percentage, e.g. "0.27%".
func (f Fee) String() string {
	return strconv.FormatFloat(float64(f.BasisPoints)/100, 'f', -1, 64) + "%"
}

// ParsePercent converts a percentage such as "4.5" into a checked fee (450 bp).
func ParsePercent(s string) (Fee, error) {
	value, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return Fee{}, fmt.Errorf("%w: %q", ErrInvalidFee, s)
	}
	// epsilon absorbs binary representation error, e.g. 0.29*100
	bp := math.Floor(value*100 + 1e-6)
	if bp < 0 || math.IsNaN(bp) {
		return Fee{}, fmt.Errorf("%w: %q", ErrInvalidFee, s)
	}
	if bp > float64(MaxBasisPoints) {
		return Fee{}, fmt.Errorf("%w: %q", ErrFeeTooHigh, s)
	}
	fee := FromBasisPoints(uint32(bp))
	return fee, fee.Check()
}
