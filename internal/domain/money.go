package domain

import (
	"fmt"
	"math"
)

// Money is an amount in minor currency units (cents).
type Money int64

// Dollars converts a major-unit amount, rounding to the nearest cent.
func Dollars(v float64) Money {
	return Money(math.Round(v * 100))
}

func (m Money) Float() float64 {
	return float64(m) / 100
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
