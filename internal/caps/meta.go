package caps

// Meta is a mapping from tag to concrete value, used both as negotiated
// configuration (derived from a capability intersection) and as
// descriptive stream metadata such as bitrate, duration, or codec
// config bytes (spec.md §3).
type Meta struct {
	values map[string]any
}

// NewMeta creates an empty Meta.
func NewMeta() *Meta {
	return &Meta{values: make(map[string]any)}
}

// Set stores value under tag.
func (m *Meta) Set(tag string, value any) {
	m.values[tag] = value
}

// Get retrieves the value stored under tag.
func (m *Meta) Get(tag string) (any, bool) {
	v, ok := m.values[tag]
	return v, ok
}

// Tags returns every tag currently set.
func (m *Meta) Tags() []string {
	out := make([]string, 0, len(m.values))
	for k := range m.values {
		out = append(out, k)
	}
	return out
}

// Merge returns a new Meta containing every tag from m, overlaid by
// every tag from other (spec.md §4.4: "Configure propagates downstream
// with a merged Meta: upstream meta + negotiated caps' required keys").
func (m *Meta) Merge(other *Meta) *Meta {
	out := NewMeta()
	for k, v := range m.values {
		out.values[k] = v
	}
	if other != nil {
		for k, v := range other.values {
			out.values[k] = v
		}
	}
	return out
}

// FromCapability builds a Meta from a negotiated Capability's concrete
// key values: Fixed and single-element Discrete/Range value-sets become
// a scalar tag; anything else (an unresolved range/discrete set) is
// skipped since it does not represent a single configured value.
func FromCapability(c Capability) *Meta {
	m := NewMeta()
	m.Set("mime", c.MIME)
	for k, vs := range c.Keys {
		switch {
		case vs.Fixed != nil:
			m.Set(k, vs.Fixed)
		case len(vs.Discrete) == 1:
			m.Set(k, vs.Discrete[0])
		case vs.Range != nil && vs.Range.Min == vs.Range.Max:
			m.Set(k, vs.Range.Min)
		}
	}
	return m
}

// Clone deep-copies m.
func (m *Meta) Clone() *Meta {
	out := NewMeta()
	for k, v := range m.values {
		out.values[k] = v
	}
	return out
}
