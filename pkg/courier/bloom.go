package courier

import (
	bloomfilter "github.com/opencourier/meshsync/util/bloomfilter"
)

// BloomFilter adapts the library bloom-filter to the MembershipFilter
// contract. Its exported state is what travels inside a manifest.
type BloomFilter struct {
	filter *bloomfilter.Filter
}

func NewBloomFilter(numHashFuncs uint, bits uint) *BloomFilter {
	return &BloomFilter{filter: bloomfilter.NewFilter(numHashFuncs, bits)}
}

func (b *BloomFilter) Add(id string) {
	b.filter.Add([]byte(id))
}

func (b *BloomFilter) MightContain(id string) bool {
	return b.filter.Check([]byte(id))
}

func (b *BloomFilter) Export() ([]byte, error) {
	return b.filter.Bytes()
}
