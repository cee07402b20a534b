package bloomfilter

import (
	"fmt"
	"testing"

	assert "github.com/stretchr/testify/assert"
)

func TestBasic(t *testing.T) {
	b := NewFilter(3, 100)
	d1, d2 := []byte("Hello"), []byte("Jello")
	b.Add(d1)

	assert.True(t, b.Check(d1))
	assert.False(t, b.Check(d2))
}

func TestNoFalseNegatives(t *testing.T) {
	b := NewFilter(5, 8192)
	for i := 0; i < 200; i++ {
		b.Add([]byte(fmt.Sprintf("msg-%d", i)))
	}
	for i := 0; i < 200; i++ {
		assert.True(t, b.Check([]byte(fmt.Sprintf("msg-%d", i))))
	}
}

func TestWireRoundTrip(t *testing.T) {
	b := NewFilter(4, 1024)
	for i := 0; i < 50; i++ {
		b.Add([]byte(fmt.Sprintf("item-%d", i)))
	}
	raw, err := b.Bytes()
	assert.NoError(t, err)

	parsed, err := ParseFilter(raw)
	assert.NoError(t, err)
	for i := 0; i < 50; i++ {
		assert.True(t, parsed.Check([]byte(fmt.Sprintf("item-%d", i))))
	}
}

func TestParseEmptyState(t *testing.T) {
	_, err := ParseFilter(nil)
	assert.ErrorIs(t, err, ErrEmptyState)
}

func TestApproxCount(t *testing.T) {
	b := NewFilter(5, 8192)
	assert.Equal(t, uint(0), b.ApproxCount())
	for i := 0; i < 100; i++ {
		b.Add([]byte(fmt.Sprintf("n-%d", i)))
	}
	n := b.ApproxCount()
	assert.Greater(t, n, uint(80))
	assert.Less(t, n, uint(120))
}

func TestFalsePositiveRateGrows(t *testing.T) {
	b := NewFilter(3, 256)
	assert.Less(t, b.FalsePositiveRate(10), b.FalsePositiveRate(100))
}
