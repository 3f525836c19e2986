package datapacker

import "testing"

func TestPeekRangeContiguous(t *testing.T) {
	p := New()
	p.Push(0, []byte("hello "))
	p.Push(6, []byte("world"))

	dst := make([]byte, 11)
	if !p.PeekRange(0, 11, dst) {
		t.Fatal("expected contiguous range to be available")
	}
	if string(dst) != "hello world" {
		t.Fatalf("got %q", dst)
	}
}

func TestPeekRangeMissingDataFailsWithoutPartialDelivery(t *testing.T) {
	p := New()
	p.Push(0, []byte("hello "))
	// gap, then a later chunk
	p.Push(20, []byte("world"))

	dst := make([]byte, 11)
	for i := range dst {
		dst[i] = 0xFF
	}
	if p.PeekRange(0, 11, dst) {
		t.Fatal("expected straddling-gap range to fail")
	}
	for i, b := range dst {
		if b != 0xFF {
			t.Fatalf("partial delivery detected at byte %d: %v", i, dst)
		}
	}
}

func TestGetRangeConsumes(t *testing.T) {
	p := New()
	p.Push(0, []byte("abcdef"))

	dst := make([]byte, 3)
	if !p.GetRange(0, 3, dst) {
		t.Fatal("expected range to be available")
	}
	if string(dst) != "abc" {
		t.Fatalf("got %q", dst)
	}
	if p.IsDataAvailable(0, 3) {
		t.Fatal("expected consumed bytes to no longer be available")
	}
	dst2 := make([]byte, 3)
	if !p.GetRange(3, 3, dst2) || string(dst2) != "def" {
		t.Fatalf("expected remaining bytes to still be available, got %q", dst2)
	}
}

func TestFlushDropsEverything(t *testing.T) {
	p := New()
	p.Push(0, []byte("abc"))
	p.Flush()
	if p.IsDataAvailable(0, 1) {
		t.Fatal("expected flush to drop all data")
	}
}

func TestOutOfOrderPush(t *testing.T) {
	p := New()
	p.Push(3, []byte("def"))
	p.Push(0, []byte("abc"))
	dst := make([]byte, 6)
	if !p.GetRange(0, 6, dst) || string(dst) != "abcdef" {
		t.Fatalf("expected out-of-order pushes to assemble, got %q", dst)
	}
}
