// Package units wraps shopspring/decimal for the fixed-point
// arithmetic the facility controller and PID loop need: burn-rate
// tenths (br10), energy joules, and fill fractions. Plain float64
// accumulates rounding error over thousands of ticks (0.1 + 0.2 !=
// 0.3). The facility controller rounds its setpoints to tenths through
// RoundTenth here; its PID accumulator and the allocator's tenths are
// kept as plain float64 and int64 by their callers.
package units

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BR10 is a burn rate expressed in tenths of mB/t, the unit the
// allocation algorithm and ramp arithmetic operate in.
type BR10 struct {
	v decimal.Decimal
}

// Zero is the zero BR10 value.
var Zero = BR10{v: decimal.Zero}

// NewBR10FromInt builds a BR10 from a whole number of tenths.
func NewBR10FromInt(tenths int64) BR10 {
	return BR10{v: decimal.NewFromInt(tenths)}
}

// NewBR10FromMB builds a BR10 from a burn rate expressed in mB/t
// (floor(x*10) tenths, per the allocation algorithm's step 1).
func NewBR10FromMB(mbPerTick float64) BR10 {
	d := decimal.NewFromFloat(mbPerTick).Mul(decimal.NewFromInt(10))
	return BR10{v: d.Floor()}
}

// Int64 returns the whole number of tenths.
func (b BR10) Int64() int64 { return b.v.IntPart() }

// MB returns the value converted back to mB/t.
func (b BR10) MB() float64 {
	f, _ := b.v.Div(decimal.NewFromInt(10)).Float64()
	return f
}

func (b BR10) Add(o BR10) BR10 { return BR10{v: b.v.Add(o.v)} }
func (b BR10) Sub(o BR10) BR10 { return BR10{v: b.v.Sub(o.v)} }

// Cmp compares two BR10 values (-1, 0, 1).
func (b BR10) Cmp(o BR10) int { return b.v.Cmp(o.v) }

// LessThanOrEqual reports whether b <= o.
func (b BR10) LessThanOrEqual(o BR10) bool { return b.v.Cmp(o.v) <= 0 }

// Clamp bounds b to [lo, hi].
func (b BR10) Clamp(lo, hi BR10) BR10 {
	if b.v.Cmp(lo.v) < 0 {
		return lo
	}
	if b.v.Cmp(hi.v) > 0 {
		return hi
	}
	return b
}

// IsZero reports whether the value is exactly zero.
func (b BR10) IsZero() bool { return b.v.IsZero() }

// IsPositive reports whether the value is greater than zero.
func (b BR10) IsPositive() bool { return b.v.IsPositive() }

func (b BR10) String() string { return b.v.String() }

// DivFloorInt divides b by n (a unit count) and floors, per the
// allocation algorithm's "base share := floor(unallocated / |U|)".
func (b BR10) DivFloorInt(n int) BR10 {
	if n <= 0 {
		return Zero
	}
	return BR10{v: b.v.Div(decimal.NewFromInt(int64(n))).Floor()}
}

// Fraction is a dimensionless ratio in [0, 1] (fill fractions, moving
// average inputs).
type Fraction struct {
	v decimal.Decimal
}

// NewFraction builds a Fraction from a float64.
func NewFraction(f float64) Fraction { return Fraction{v: decimal.NewFromFloat(f)} }

// Float64 returns the fraction as a float64.
func (f Fraction) Float64() float64 {
	out, _ := f.v.Float64()
	return out
}

// GreaterOrEqual reports whether f >= o.
func (f Fraction) GreaterOrEqual(o Fraction) bool { return f.v.Cmp(o.v) >= 0 }

// LessOrEqual reports whether f <= o.
func (f Fraction) LessOrEqual(o Fraction) bool { return f.v.Cmp(o.v) <= 0 }

func (f Fraction) String() string { return f.v.StringFixed(4) }

// Joules is an energy quantity, used for matrix energy and the
// charge-conversion arithmetic.
type Joules struct {
	v decimal.Decimal
}

// NewJoules builds a Joules value from a float64.
func NewJoules(f float64) Joules { return Joules{v: decimal.NewFromFloat(f)} }

func (j Joules) Add(o Joules) Joules { return Joules{v: j.v.Add(o.v)} }
func (j Joules) Sub(o Joules) Joules { return Joules{v: j.v.Sub(o.v)} }
func (j Joules) Float64() float64 {
	f, _ := j.v.Float64()
	return f
}

// DivFraction divides numerator by divisor in decimal arithmetic,
// returning an error on division by zero (used for
// error/charge_conversion).
func DivFraction(numerator, divisor float64) (float64, error) {
	if divisor == 0 {
		return 0, fmt.Errorf("units: division by zero charge_conversion")
	}
	n := decimal.NewFromFloat(numerator)
	d := decimal.NewFromFloat(divisor)
	out, _ := n.Div(d).Float64()
	return out, nil
}

// RoundTenth rounds f to the nearest 0.1, matching
// "sp_r := round(setpoint * 10) / 10".
func RoundTenth(f float64) float64 {
	d := decimal.NewFromFloat(f).Mul(decimal.NewFromInt(10)).Round(0)
	out, _ := d.Div(decimal.NewFromInt(10)).Float64()
	return out
}

// Clamp bounds f to [lo, hi].
func Clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
