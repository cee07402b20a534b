package courier

import "time"

// ProtocolVersion is advertised in manifest capabilities. There is no
// negotiation fallback: mismatches are an open extension point.
const ProtocolVersion = 1

type Constants struct {
	MessageSizeEstimate int64 // (bytes) flat planning size per message
	LinkThroughput      int64 // (bytes/s) assumed opportunistic link speed
	StorageCapacity     int64 // (bytes) fixed ceiling for headroom math
	FilterHashes        uint  // bloom hash functions
	FilterBits          uint  // bloom bitmap size
	QuickSyncMaxBytes   int64
	QuickSyncDuration   time.Duration
	// CompressionPreference is ordered best-first. Both sides of an
	// encounter must share the ordering for the pick to be symmetric.
	CompressionPreference []string
}

func GetDefaultConstants() *Constants {
	return &Constants{
		MessageSizeEstimate:   512,
		LinkThroughput:        32 * 1024,
		StorageCapacity:       64 * 1024 * 1024,
		FilterHashes:          5,
		FilterBits:            8192,
		QuickSyncMaxBytes:     256 * 1024,
		QuickSyncDuration:     2 * time.Minute,
		CompressionPreference: []string{CompressionZstd, CompressionGzip},
	}
}
