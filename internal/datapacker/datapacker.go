// Package datapacker implements the demuxer's inbound buffer assembler
// (spec.md §4.6 "DataPacker"): arbitrary-size pushed buffers are stored
// by their originating byte offset and can be peeked or consumed as
// contiguous ranges, concatenating adjacent chunks on demand.
package datapacker

import "sync"

type chunk struct {
	offset int64
	data   []byte
}

// Packer assembles push-mode byte buffers into a queryable byte range.
// Grounded on the original engine's ring-buffer-backed assembler
// (engine/utils/ring_buffer.h): here a simple ordered chunk list plays
// the same role, since the core's concern is the peek/get/flush
// contract, not the backing allocator.
type Packer struct {
	mu     sync.Mutex
	chunks []chunk
}

// New creates an empty Packer.
func New() *Packer {
	return &Packer{}
}

// Push stores data as having originated at byte offset.
func (p *Packer) Push(offset int64, data []byte) {
	if len(data) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	p.chunks = append(p.chunks, chunk{offset: offset, data: cp})
}

// IsDataAvailable reports whether [offset, offset+size) is fully covered
// by pushed chunks with no gaps.
func (p *Packer) IsDataAvailable(offset int64, size int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.assemble(offset, size)
	return ok
}

// PeekRange copies [offset, offset+size) into dst without consuming it.
// Returns false without partial delivery if the range straddles missing
// data (spec.md §4.6 invariant).
func (p *Packer) PeekRange(offset int64, size int, dst []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.assemble(offset, size)
	if !ok {
		return false
	}
	copy(dst, data)
	return true
}

// GetRange is PeekRange followed by consuming (dropping) all chunk bytes
// up to offset+size.
func (p *Packer) GetRange(offset int64, size int, dst []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.assemble(offset, size)
	if !ok {
		return false
	}
	copy(dst, data)
	p.consumeLocked(offset + int64(size))
	return true
}

// Flush drops all held data.
func (p *Packer) Flush() {
	p.mu.Lock()
	p.chunks = nil
	p.mu.Unlock()
}

// assemble concatenates adjacent chunks covering [offset, offset+size)
// on demand. Must be called with p.mu held.
func (p *Packer) assemble(offset int64, size int) ([]byte, bool) {
	if size == 0 {
		return nil, true
	}
	out := make([]byte, size)
	need := offset
	end := offset + int64(size)
	filled := 0
	// Chunks may arrive out of byte order from concurrent producers
	// (spec.md §4.1: "no ordering between concurrent producers"), so scan
	// all chunks each time rather than assuming sorted insertion order.
	for need < end {
		found := false
		for _, c := range p.chunks {
			cStart := c.offset
			cEnd := c.offset + int64(len(c.data))
			if cStart <= need && need < cEnd {
				n := int64(len(c.data)) - (need - cStart)
				if need+n > end {
					n = end - need
				}
				copy(out[filled:], c.data[need-cStart:need-cStart+n])
				filled += int(n)
				need += n
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return out, true
}

// consumeLocked drops chunk bytes strictly before upTo, trimming
// straddling chunks rather than deleting them outright.
func (p *Packer) consumeLocked(upTo int64) {
	var kept []chunk
	for _, c := range p.chunks {
		cEnd := c.offset + int64(len(c.data))
		if cEnd <= upTo {
			continue // fully consumed
		}
		if c.offset < upTo {
			trim := upTo - c.offset
			c.data = c.data[trim:]
			c.offset = upTo
		}
		kept = append(kept, c)
	}
	p.chunks = kept
}
