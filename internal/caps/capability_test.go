package caps

import "testing"

func TestIntersectCommutative(t *testing.T) {
	a := New("audio/mp4").With("sample-rate", DiscreteValues(int64(44100), int64(48000)))
	b := New("audio/mp4").With("sample-rate", RangeValue(32000, 48000))

	ab, okAB := Intersect(a, b)
	ba, okBA := Intersect(b, a)
	if okAB != okBA {
		t.Fatalf("commutativity mismatch: okAB=%v okBA=%v", okAB, okBA)
	}
	if !ab.Equal(ba) {
		t.Fatalf("Intersect(a,b) != Intersect(b,a): %+v vs %+v", ab, ba)
	}
}

func TestIntersectIdempotent(t *testing.T) {
	a := New("video/avc").With("pixel-format", FixedValue("nv12"))
	aa, ok := Intersect(a, a)
	if !ok {
		t.Fatal("expected self-intersection to succeed")
	}
	if !aa.Equal(a) {
		t.Fatalf("Intersect(a,a) != a: %+v vs %+v", aa, a)
	}
}

func TestIntersectDisjointMime(t *testing.T) {
	a := New("audio/mp4")
	b := New("video/avc")
	_, ok := Intersect(a, b)
	if ok {
		t.Fatal("expected disjoint mime intersection to fail")
	}
}

func TestIntersectDisjointValueSet(t *testing.T) {
	a := New("audio/mp4").With("sample-rate", DiscreteValues(int64(44100)))
	b := New("audio/mp4").With("sample-rate", DiscreteValues(int64(48000)))
	_, ok := Intersect(a, b)
	if ok {
		t.Fatal("expected disjoint sample-rate sets to fail intersection")
	}
}

func TestIntersectRangeNarrowing(t *testing.T) {
	a := New("video/avc").With("width", RangeValue(320, 1920))
	b := New("video/avc").With("width", RangeValue(640, 3840))
	out, ok := Intersect(a, b)
	if !ok {
		t.Fatal("expected overlapping ranges to intersect")
	}
	vs := out.Keys["width"]
	if vs.Range == nil || vs.Range.Min != 640 || vs.Range.Max != 1920 {
		t.Fatalf("unexpected narrowed range: %+v", vs.Range)
	}
}

func TestIsSubsetOf(t *testing.T) {
	child := New("audio/mp4").With("sample-rate", FixedValue(int64(44100)))
	parent := New("audio/mp4").With("sample-rate", RangeValue(8000, 48000))
	if !child.IsSubsetOf(parent) {
		t.Fatal("expected child to be a subset of parent")
	}
	if child.IsSubsetOf(New("video/avc")) {
		t.Fatal("expected mime mismatch to break subset relation")
	}
}

func TestMetaMergeOverlaysOther(t *testing.T) {
	base := NewMeta()
	base.Set("bitrate", int64(128000))
	base.Set("duration", int64(1000))

	overlay := NewMeta()
	overlay.Set("bitrate", int64(256000))

	merged := base.Merge(overlay)
	bitrate, _ := merged.Get("bitrate")
	duration, _ := merged.Get("duration")
	if bitrate != int64(256000) {
		t.Fatalf("expected overlay to win, got %v", bitrate)
	}
	if duration != int64(1000) {
		t.Fatalf("expected base tag to survive merge, got %v", duration)
	}
}

func TestFromCapabilityScalarsOnly(t *testing.T) {
	c := New("audio/mp4").
		With("sample-rate", FixedValue(int64(44100))).
		With("channels", DiscreteValues(int64(2)))
	m := FromCapability(c)
	sr, ok := m.Get("sample-rate")
	if !ok || sr != int64(44100) {
		t.Fatalf("expected sample-rate=44100, got %v ok=%v", sr, ok)
	}
	ch, ok := m.Get("channels")
	if !ok || ch != int64(2) {
		t.Fatalf("expected single-element discrete to collapse to scalar, got %v ok=%v", ch, ok)
	}
}
