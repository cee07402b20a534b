/*
 This module began as a modified version of the bloom-filter found at:
          https://github.com/reddragon/bloomfilter.go

 It has since been reworked for courier manifests: double hashing over
 xxh3, an exportable wire form, and a fill-ratio cardinality estimate.
*/

package bloomfilter

import (
	"bytes"
	"errors"
	"math"

	bitset "github.com/opencourier/meshsync/util/bitset"
	xxhash3 "github.com/zeebo/xxh3"
)

var ErrEmptyState = errors.New("bloomfilter: empty exported state")

// Filter is a standard bloom-filter: k hash functions over an m-bit
// bitmap. Membership tests may report false positives but never false
// negatives, which is exactly the property courier negotiation relies
// on.
type Filter struct {
	k      uint
	m      uint
	bitmap *bitset.BitSet
}

func NewFilter(numHashFuncs uint, bfSize uint) *Filter {
	return &Filter{
		k:      numHashFuncs,
		m:      bfSize,
		bitmap: bitset.New(uint32(bfSize)),
	}
}

// ParseFilter reconstructs a filter from its exported wire form:
// one byte holding k followed by the bitset wire form.
func ParseFilter(b []byte) (*Filter, error) {
	if len(b) < 2 {
		return nil, ErrEmptyState
	}
	k := uint(b[0])
	bs, err := bitset.Parse(b[1:])
	if err != nil {
		return nil, err
	}
	return &Filter{
		k:      k,
		m:      uint(bs.Len()),
		bitmap: bs,
	}, nil
}

// index derives the i-th probe position by double hashing: the 64-bit
// xxh3 digest is split into two 32-bit halves h1, h2 and probed as
// h1 + i*h2 mod m.
func (f *Filter) index(d []byte, i uint) uint {
	h := xxhash3.Hash(d)
	h1 := uint32(h & 0xffffffff)
	h2 := uint32(h >> 32)
	return uint((h1 + uint32(i)*h2) % uint32(f.m))
}

// Add inserts an element (in byte form) into the filter.
func (f *Filter) Add(d []byte) {
	for i := uint(0); i < f.k; i++ {
		f.bitmap.Set(f.index(d, i), true)
	}
}

// Check reports whether an element might be in the filter. A false
// result is definitive.
func (f *Filter) Check(d []byte) bool {
	for i := uint(0); i < f.k; i++ {
		if !f.bitmap.Test(f.index(d, i)) {
			return false
		}
	}
	return true
}

// Bytes exports the filter into its wire form.
func (f *Filter) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(1 + f.bitmap.WriteSize()))
	if err := buf.WriteByte(byte(f.k)); err != nil {
		return nil, err
	}
	if err := f.bitmap.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FalsePositiveRate returns the expected false-positive probability
// after n insertions.
func (f *Filter) FalsePositiveRate(n uint) float64 {
	return math.Pow(1-math.Exp(-float64(f.k*n)/float64(f.m)), float64(f.k))
}

// ApproxCount estimates how many distinct elements have been inserted,
// from the fill ratio of the bitmap.
func (f *Filter) ApproxCount() uint {
	x := float64(f.bitmap.Count())
	m := float64(f.m)
	if x >= m {
		return uint(m)
	}
	return uint(-(m / float64(f.k)) * math.Log(1-x/m))
}
