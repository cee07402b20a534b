package bitset

import (
	"bytes"
	"errors"
	"math/bits"
)

var ErrShortBuffer = errors.New("bitset: buffer too short to parse")

// BitSet is a fixed-length bitmap. Index zero is the lowest bit of the
// first byte. The wire form is one pad byte (count of unused bits in
// the final byte) followed by the raw bytes, so a set of any length
// round-trips exactly across devices.
type BitSet struct {
	set []uint8
	len uint32
}

func New(n uint32) *BitSet {
	return &BitSet{
		set: make([]uint8, (n+7)/8),
		len: n,
	}
}

func Parse(buf []byte) (*BitSet, error) {
	if len(buf) < 2 {
		return nil, ErrShortBuffer
	}
	pad := uint32(buf[0]) % 8
	body := make([]uint8, len(buf)-1)
	copy(body, buf[1:])
	return &BitSet{
		set: body,
		len: uint32(len(body))*8 - pad,
	}, nil
}

func (b *BitSet) Test(index uint) bool {
	return (b.set[index/8] & (uint8(1) << (index % 8))) != 0
}

func (b *BitSet) Set(index uint, value bool) {
	if value {
		b.set[index/8] |= uint8(1) << (index % 8)
	} else {
		b.set[index/8] &^= uint8(1) << (index % 8)
	}
}

func (b *BitSet) Len() uint32 {
	return b.len
}

// Count returns the number of set bits.
func (b *BitSet) Count() uint32 {
	var n int
	for _, octet := range b.set {
		n += bits.OnesCount8(octet)
	}
	return uint32(n)
}

func (b *BitSet) Copy() *BitSet {
	c := New(b.len)
	copy(c.set, b.set)
	return c
}

func (b *BitSet) Clear() {
	for i := range b.set {
		b.set[i] = 0
	}
}

func (b *BitSet) WriteSize() uint32 {
	return 1 + (b.len+7)/8
}

func (b *BitSet) WriteTo(buf *bytes.Buffer) error {
	if err := buf.WriteByte(byte((8 - b.len%8) % 8)); err != nil {
		return err
	}
	_, err := buf.Write(b.set)
	return err
}

func (b *BitSet) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(b.WriteSize()))
	if err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
