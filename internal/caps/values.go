// Package caps implements Capability and Meta, the negotiation currency
// that flows between ports and plugins (spec.md §3 "Capability"/"Meta",
// §4.4).
package caps

import "fmt"

// ValueSet describes the set of values a capability key may take: a
// fixed single value, a discrete enumeration, or a numeric range.
type ValueSet struct {
	Fixed    any
	Discrete []any
	Range    *Range
}

// Range is an inclusive numeric range over int64 values (sample rates,
// pixel dimensions, bitrates, etc. are all representable as int64 here).
type Range struct {
	Min, Max int64
}

func FixedValue(v any) ValueSet        { return ValueSet{Fixed: v} }
func DiscreteValues(v ...any) ValueSet { return ValueSet{Discrete: v} }
func RangeValue(min, max int64) ValueSet {
	return ValueSet{Range: &Range{Min: min, Max: max}}
}

// IsEmpty reports whether the value set denotes no acceptable values.
func (v ValueSet) IsEmpty() bool {
	return v.Fixed == nil && len(v.Discrete) == 0 && v.Range == nil
}

func (v ValueSet) String() string {
	switch {
	case v.Fixed != nil:
		return fmt.Sprintf("=%v", v.Fixed)
	case v.Range != nil:
		return fmt.Sprintf("[%d..%d]", v.Range.Min, v.Range.Max)
	case len(v.Discrete) > 0:
		return fmt.Sprintf("%v", v.Discrete)
	default:
		return "<empty>"
	}
}

// intersectValueSet computes the intersection of two ValueSets, in
// terms of int64 for ranges/discrete-of-int64, or raw equality for
// scalar Fixed values that aren't numeric (e.g. strings).
func intersectValueSet(a, b ValueSet) (ValueSet, bool) {
	// Fixed vs Fixed: equal or nothing.
	if a.Fixed != nil && b.Fixed != nil {
		if a.Fixed == b.Fixed {
			return FixedValue(a.Fixed), true
		}
		return ValueSet{}, false
	}
	// Fixed vs Discrete: fixed must be a member.
	if a.Fixed != nil && len(b.Discrete) > 0 {
		for _, d := range b.Discrete {
			if d == a.Fixed {
				return FixedValue(a.Fixed), true
			}
		}
		return ValueSet{}, false
	}
	if b.Fixed != nil && len(a.Discrete) > 0 {
		return intersectValueSet(b, a)
	}
	// Fixed vs Range: fixed must be in range (requires int64-able value).
	if a.Fixed != nil && b.Range != nil {
		if n, ok := asInt64(a.Fixed); ok && n >= b.Range.Min && n <= b.Range.Max {
			return FixedValue(a.Fixed), true
		}
		return ValueSet{}, false
	}
	if b.Fixed != nil && a.Range != nil {
		return intersectValueSet(b, a)
	}
	// Discrete vs Discrete: set intersection.
	if len(a.Discrete) > 0 && len(b.Discrete) > 0 {
		var out []any
		for _, x := range a.Discrete {
			for _, y := range b.Discrete {
				if x == y {
					out = append(out, x)
					break
				}
			}
		}
		if len(out) == 0 {
			return ValueSet{}, false
		}
		return DiscreteValues(out...), true
	}
	// Discrete vs Range.
	if len(a.Discrete) > 0 && b.Range != nil {
		var out []any
		for _, x := range a.Discrete {
			if n, ok := asInt64(x); ok && n >= b.Range.Min && n <= b.Range.Max {
				out = append(out, x)
			}
		}
		if len(out) == 0 {
			return ValueSet{}, false
		}
		return DiscreteValues(out...), true
	}
	if len(b.Discrete) > 0 && a.Range != nil {
		return intersectValueSet(b, a)
	}
	// Range vs Range.
	if a.Range != nil && b.Range != nil {
		lo, hi := a.Range.Min, a.Range.Max
		if b.Range.Min > lo {
			lo = b.Range.Min
		}
		if b.Range.Max < hi {
			hi = b.Range.Max
		}
		if lo > hi {
			return ValueSet{}, false
		}
		return RangeValue(lo, hi), true
	}
	return ValueSet{}, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}
