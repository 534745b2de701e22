package bittorrent

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Bitfield is a fixed-length bitmap, used as the cache's write-back
// out-bitmap (which blocks a Writer actually persisted) and for any other
// fixed-size block/piece membership tracking the cache needs.
//
// It wraps a roaring.Bitmap the same way hupe1980/vecgo's LocalBitmap wraps
// one for shard filtering: the public surface stays index-based so callers
// never see the compressed-bitmap internals.
type Bitfield struct {
	length uint32
	rb     *roaring.Bitmap
}

// NewBitfield creates a new bitfield of the given length, with all bits
// clear.
func NewBitfield(length uint32) *Bitfield {
	return &Bitfield{
		length: length,
		rb:     roaring.New(),
	}
}

// Len returns the number of addressable bits.
func (bf *Bitfield) Len() uint32 {
	return bf.length
}

// Set sets the bit at index.
func (bf *Bitfield) Set(index uint32) {
	if index < bf.length {
		bf.rb.Add(index)
	}
}

// Unset clears the bit at index.
func (bf *Bitfield) Unset(index uint32) {
	if index < bf.length {
		bf.rb.Remove(index)
	}
}

// Has returns true if the bit at index is set.
func (bf *Bitfield) Has(index uint32) bool {
	return index < bf.length && bf.rb.Contains(index)
}

// Zero clears every bit.
func (bf *Bitfield) Zero() {
	bf.rb.Clear()
}

// CountSet returns how many bits are set.
func (bf *Bitfield) CountSet() int {
	return int(bf.rb.GetCardinality())
}

// Completed returns true if every addressable bit is set.
func (bf *Bitfield) Completed() bool {
	return uint64(bf.rb.GetCardinality()) == uint64(bf.length)
}

// Copy returns an independent copy of this bitfield.
func (bf *Bitfield) Copy() *Bitfield {
	return &Bitfield{
		length: bf.length,
		rb:     bf.rb.Clone(),
	}
}

// FirstContiguousRun returns the number of set bits starting at `from`
// that are contiguous (from, from+1, from+2, ...) before the first unset
// or out-of-range bit. The flush driver uses it to detect a Writer that
// persisted a non-contiguous subset of the blocks it was offered.
func (bf *Bitfield) FirstContiguousRun(from uint32) uint32 {
	n := uint32(0)
	for from+n < bf.length && bf.rb.Contains(from+n) {
		n++
	}
	return n
}
