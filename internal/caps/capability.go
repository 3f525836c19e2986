package caps

import "sort"

// Capability is a MIME string plus a mapping from capability key (e.g.
// sample-rate, pixel-format, channel-layout) to a value-set (spec.md §3).
type Capability struct {
	MIME string
	Keys map[string]ValueSet
}

// New creates a Capability for mime with an empty key map.
func New(mime string) Capability {
	return Capability{MIME: mime, Keys: make(map[string]ValueSet)}
}

// With returns a copy of c with key set to vs (builder-style, handy for
// plugin capability tables declared as literals).
func (c Capability) With(key string, vs ValueSet) Capability {
	out := Capability{MIME: c.MIME, Keys: make(map[string]ValueSet, len(c.Keys)+1)}
	for k, v := range c.Keys {
		out.Keys[k] = v
	}
	out.Keys[key] = vs
	return out
}

// Clone deep-copies c.
func (c Capability) Clone() Capability {
	out := Capability{MIME: c.MIME, Keys: make(map[string]ValueSet, len(c.Keys))}
	for k, v := range c.Keys {
		out.Keys[k] = v
	}
	return out
}

// Intersect computes the intersection of two capabilities (spec.md §3,
// §8 property 4). Intersection of mismatched MIME types is always
// empty. The operation is commutative: Intersect(a,b) == Intersect(b,a)
// and idempotent: Intersect(a,a) == a.
func Intersect(a, b Capability) (Capability, bool) {
	if a.MIME != b.MIME {
		return Capability{}, false
	}
	out := New(a.MIME)
	keys := make(map[string]struct{})
	for k := range a.Keys {
		keys[k] = struct{}{}
	}
	for k := range b.Keys {
		keys[k] = struct{}{}
	}
	for k := range keys {
		av, aok := a.Keys[k]
		bv, bok := b.Keys[k]
		switch {
		case aok && bok:
			vs, ok := intersectValueSet(av, bv)
			if !ok {
				return Capability{}, false
			}
			out.Keys[k] = vs
		case aok:
			out.Keys[k] = av
		case bok:
			out.Keys[k] = bv
		}
	}
	return out, true
}

// IsSubsetOf reports whether every key constraint in c is satisfiable
// within parent, i.e. parent accepts everything c offers (used by the
// negotiation protocol's "U ⊆ plugin.in_caps" check, spec.md §4.4).
func (c Capability) IsSubsetOf(parent Capability) bool {
	if c.MIME != parent.MIME {
		return false
	}
	for k, cv := range c.Keys {
		pv, ok := parent.Keys[k]
		if !ok {
			continue // parent imposes no constraint on this key: compatible
		}
		if _, ok := intersectValueSet(cv, pv); !ok {
			return false
		}
	}
	return true
}

// Equal reports structural equality, used by tests asserting the
// algebra's commutativity/idempotency properties.
func (c Capability) Equal(other Capability) bool {
	if c.MIME != other.MIME || len(c.Keys) != len(other.Keys) {
		return false
	}
	keysA := sortedKeys(c.Keys)
	keysB := sortedKeys(other.Keys)
	for i := range keysA {
		if keysA[i] != keysB[i] {
			return false
		}
		if c.Keys[keysA[i]].String() != other.Keys[keysB[i]].String() {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]ValueSet) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
