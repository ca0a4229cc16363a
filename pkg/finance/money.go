// Package finance provides monetary amounts for tender budgets and
// stage payments. It uses integer math (minor units) to avoid floating
// point errors.
package finance

import (
	"fmt"
	"math"
	"strconv"
)

// Amount is a monetary value in minor units (cents).
type Amount int64

// AmountFromFloat converts a decimal amount (e.g. 1000.50) to minor units.
func AmountFromFloat(v float64) Amount {
	return Amount(math.Round(v * 100))
}

// Float64 returns the amount as a decimal value.
func (a Amount) Float64() float64 {
	return float64(a) / 100
}

// String renders the amount with two decimal places, e.g. "1000.00".
func (a Amount) String() string {
	return strconv.FormatFloat(a.Float64(), 'f', 2, 64)
}

// IsPositive returns true if the amount is > 0.
func (a Amount) IsPositive() bool {
	return a > 0
}

// MarshalJSON renders the amount as a plain JSON number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts any JSON number (integer or decimal).
func (a *Amount) UnmarshalJSON(data []byte) error {
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", string(data), err)
	}
	*a = AmountFromFloat(v)
	return nil
}

// SplitEven divides total into parts equal shares rounded down to the
// minor unit. The final share absorbs the rounding remainder, so the
// shares always sum to total exactly.
func SplitEven(total Amount, parts int) []Amount {
	if parts <= 0 {
		return nil
	}
	per := total / Amount(parts)
	shares := make([]Amount, parts)
	for i := range shares {
		shares[i] = per
	}
	shares[parts-1] = total - per*Amount(parts-1)
	return shares
}

// Sum adds amounts.
func Sum(amounts []Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}
