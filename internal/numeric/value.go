package numeric

import (
	"math"
	"strconv"
)

// Value is an optional float64. The zero Value is absent.
//
// Absence propagates through arithmetic: any operation with an absent operand
// yields an absent result. Comparisons involving an absent operand are false.
type Value struct {
	v  float64
	ok bool
}

// Of wraps a float. NaN and infinities are treated as absent.
func Of(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{v: f, ok: true}
}

// Absent returns the absent value.
func Absent() Value {
	return Value{}
}

// Present reports whether the value holds a number.
func (x Value) Present() bool { return x.ok }

// IsAbsent reports whether the value is absent.
func (x Value) IsAbsent() bool { return !x.ok }

// Float64 returns the wrapped number and whether it is present.
func (x Value) Float64() (float64, bool) { return x.v, x.ok }

// Or returns the wrapped number, or def when absent.
func (x Value) Or(def float64) float64 {
	if !x.ok {
		return def
	}
	return x.v
}

// NaN returns the wrapped number, or NaN when absent. Useful at export
// boundaries that need a plain float.
func (x Value) NaN() float64 {
	return x.Or(math.NaN())
}

func (x Value) Add(y Value) Value {
	if !x.ok || !y.ok {
		return Value{}
	}
	return Of(x.v + y.v)
}

func (x Value) Sub(y Value) Value {
	if !x.ok || !y.ok {
		return Value{}
	}
	return Of(x.v - y.v)
}

func (x Value) Mul(y Value) Value {
	if !x.ok || !y.ok {
		return Value{}
	}
	return Of(x.v * y.v)
}

// Div divides x by y. Division by zero is absent.
func (x Value) Div(y Value) Value {
	if !x.ok || !y.ok || y.v == 0 {
		return Value{}
	}
	return Of(x.v / y.v)
}

// Scale multiplies by a constant.
func (x Value) Scale(k float64) Value {
	return x.Mul(Of(k))
}

// Map applies fn to a present value.
func (x Value) Map(fn func(float64) float64) Value {
	if !x.ok {
		return Value{}
	}
	return Of(fn(x.v))
}

func (x Value) Less(y Value) bool { return x.ok && y.ok && x.v < y.v }
func (x Value) LessOrEqual(y Value) bool { return x.ok && y.ok && x.v <= y.v }
func (x Value) Greater(y Value) bool { return x.ok && y.ok && x.v > y.v }
func (x Value) GreaterOrEqual(y Value) bool { return x.ok && y.ok && x.v >= y.v }

// Equal reports whether both values are present and equal, or both absent.
func (x Value) Equal(y Value) bool {
	if !x.ok || !y.ok {
		return x.ok == y.ok
	}
	return x.v == y.v
}

// String formats the number, or "" when absent.
func (x Value) String() string {
	if !x.ok {
		return ""
	}
	return strconv.FormatFloat(x.v, 'f', -1, 64)
}
