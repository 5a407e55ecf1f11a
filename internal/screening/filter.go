package screening

import (
	"fmt"
	"strings"

	"fiirank/internal/fund"
	"fiirank/internal/numeric"
)

// Kind separates fixed-threshold predicates from population-relative ones.
type Kind int

const (
	KindAbsolute Kind = iota
	KindQuantile
)

func (k Kind) String() string {
	switch k {
	case KindAbsolute:
		return "absolute"
	case KindQuantile:
		return "quantile"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Operator is the comparison used by an absolute filter.
type Operator int

const (
	OpGreater Operator = iota
	OpLess
	// OpRange keeps Threshold <= x < Upper.
	OpRange
	// OpLessOrAbsent keeps x < Threshold and rows where x is absent.
	OpLessOrAbsent
	// OpSectorIn keeps rows whose sector is in Allowed.
	OpSectorIn
)

// Mode says which side of a quantile cutoff survives.
type Mode string

const (
	// Larger keeps x >= cutoff.
	Larger Mode = "larger"
	// Smaller keeps x <= cutoff.
	Smaller Mode = "smaller"
)

// Valid reports whether m is one of the supported modes.
func (m Mode) Valid() bool {
	return m == Larger || m == Smaller
}

// Filter describes one step of the screening sequence.
type Filter struct {
	Name  string
	Kind  Kind
	Field fund.Field

	// Absolute filters.
	Op        Operator
	Threshold float64
	Upper     float64
	Allowed   []string

	// Quantile filters.
	Percentile float64
	Mode       Mode
}

// GreaterThan keeps rows with field > v.
func GreaterThan(f fund.Field, v float64) Filter {
	return Filter{Name: fmt.Sprintf("%s > %g", f, v), Kind: KindAbsolute, Field: f, Op: OpGreater, Threshold: v}
}

// LessThan keeps rows with field < v.
func LessThan(f fund.Field, v float64) Filter {
	return Filter{Name: fmt.Sprintf("%s < %g", f, v), Kind: KindAbsolute, Field: f, Op: OpLess, Threshold: v}
}

// Between keeps rows with lo <= field < hi.
func Between(f fund.Field, lo, hi float64) Filter {
	return Filter{Name: fmt.Sprintf("%g <= %s < %g", lo, f, hi), Kind: KindAbsolute, Field: f, Op: OpRange, Threshold: lo, Upper: hi}
}

// LessThanOrAbsent keeps rows with field < v or no value at all.
func LessThanOrAbsent(f fund.Field, v float64) Filter {
	return Filter{Name: fmt.Sprintf("%s < %g or absent", f, v), Kind: KindAbsolute, Field: f, Op: OpLessOrAbsent, Threshold: v}
}

// SectorIn keeps rows whose sector is one of allowed (exact match).
func SectorIn(allowed ...string) Filter {
	return Filter{
		Name:    fmt.Sprintf("%s in [%s]", fund.ColumnSector, strings.Join(allowed, ", ")),
		Kind:    KindAbsolute,
		Op:      OpSectorIn,
		Allowed: append([]string(nil), allowed...),
	}
}

// Quantile keeps rows on the mode side of the p-quantile of field, computed
// over the rows that reach this step.
func Quantile(f fund.Field, p float64, mode Mode) Filter {
	return Filter{
		Name:       fmt.Sprintf("%s %s than q%g", f, mode, p),
		Kind:       KindQuantile,
		Field:      f,
		Percentile: p,
		Mode:       mode,
	}
}

// Validate checks the descriptor without evaluating it.
func (f Filter) Validate() error {
	switch f.Kind {
	case KindAbsolute:
		if f.Op == OpSectorIn {
			if len(f.Allowed) == 0 {
				return fmt.Errorf("filter %q: empty sector allow-list", f.Name)
			}
			return nil
		}
		if !f.Field.Valid() {
			return fmt.Errorf("filter %q: unknown field %d", f.Name, int(f.Field))
		}
		if f.Op < OpGreater || f.Op > OpSectorIn {
			return fmt.Errorf("filter %q: unknown operator %d", f.Name, int(f.Op))
		}
		if f.Op == OpRange && f.Upper <= f.Threshold {
			return fmt.Errorf("filter %q: empty range [%g, %g)", f.Name, f.Threshold, f.Upper)
		}
	case KindQuantile:
		if !f.Mode.Valid() {
			return fmt.Errorf("filter %q: %w %q", f.Name, ErrInvalidMode, f.Mode)
		}
		if !f.Field.Valid() {
			return fmt.Errorf("filter %q: unknown field %d", f.Name, int(f.Field))
		}
		if f.Percentile < 0 || f.Percentile > 1 {
			return fmt.Errorf("filter %q: percentile %g outside [0, 1]", f.Name, f.Percentile)
		}
	default:
		return fmt.Errorf("filter %q: unknown kind %s", f.Name, f.Kind)
	}
	return nil
}

// keep evaluates an absolute filter on one record.
func (f Filter) keep(r fund.Record) bool {
	if f.Op == OpSectorIn {
		for _, s := range f.Allowed {
			if r.Sector == s {
				return true
			}
		}
		return false
	}

	x := r.Get(f.Field)
	switch f.Op {
	case OpGreater:
		return x.Greater(numeric.Of(f.Threshold))
	case OpLess:
		return x.Less(numeric.Of(f.Threshold))
	case OpRange:
		return x.GreaterOrEqual(numeric.Of(f.Threshold)) && x.Less(numeric.Of(f.Upper))
	case OpLessOrAbsent:
		return x.IsAbsent() || x.Less(numeric.Of(f.Threshold))
	default:
		panic(fmt.Sprintf("screening: unknown operator %d in filter %q", int(f.Op), f.Name))
	}
}
