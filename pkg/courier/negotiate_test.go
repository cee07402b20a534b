package courier

import (
	"testing"
	"time"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

func testEngine(t *testing.T, msgs ...StoredMessage) (*engine, *MemoryMessageStore, *BloomFilter) {
	t.Helper()
	cs := GetDefaultConstants()
	store := NewMemoryMessageStore()
	filter := NewBloomFilter(cs.FilterHashes, cs.FilterBits)
	for _, m := range msgs {
		require.NoError(t, store.Store(m))
		filter.Add(m.ID)
	}
	e := NewEngine("local-peer", store, filter, cs).(*engine)
	return e, store, filter
}

func msgWith(id string, p Priority) StoredMessage {
	return StoredMessage{
		ID:        id,
		Priority:  p,
		CreatedAt: time.Now(),
		SizeBytes: 100,
		Payload:   []byte("ciphertext-" + id),
	}
}

func peerManifest(t *testing.T, knownIDs ...string) Manifest {
	t.Helper()
	cs := GetDefaultConstants()
	f := NewBloomFilter(cs.FilterHashes, cs.FilterBits)
	for _, id := range knownIDs {
		f.Add(id)
	}
	state, err := f.Export()
	require.NoError(t, err)
	return Manifest{
		PeerID:      "remote-peer",
		Timestamp:   time.Now(),
		FilterState: state,
		Capabilities: Capabilities{
			ProtocolVersion: ProtocolVersion,
			Compression:     cs.CompressionPreference,
		},
	}
}

func TestNegotiatePeerNeedsMissingOnly(t *testing.T) {
	e, _, _ := testEngine(t, msgWith("msg1", PriorityNormal), msgWith("msg2", PriorityNormal))
	ours, err := e.GenerateManifest()
	require.NoError(t, err)

	neg, err := e.NegotiateSync(ours, peerManifest(t, "msg1"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"msg2"}, neg.MessagesPeerNeeds)
	assert.Empty(t, neg.MessagesWeNeed)
}

func TestNegotiateEmptyPeerFilterNeedsEverything(t *testing.T) {
	e, _, _ := testEngine(t, msgWith("msg1", PriorityNormal), msgWith("msg2", PriorityNormal))
	ours, err := e.GenerateManifest()
	require.NoError(t, err)

	peer := Manifest{PeerID: "remote-peer", Timestamp: time.Now()}
	neg, err := e.NegotiateSync(ours, peer)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"msg1", "msg2"}, neg.MessagesPeerNeeds)
}

func TestNegotiateEstimates(t *testing.T) {
	e, _, _ := testEngine(t, msgWith("a", PriorityNormal), msgWith("b", PriorityNormal))
	ours, err := e.GenerateManifest()
	require.NoError(t, err)
	neg, err := e.NegotiateSync(ours, Manifest{PeerID: "p"})
	require.NoError(t, err)
	assert.Equal(t, 2*e.constants.MessageSizeEstimate, neg.EstimatedBytes)
	assert.Greater(t, neg.EstimatedDuration, time.Duration(0))
}

func TestNegotiateCompressionPick(t *testing.T) {
	e, _, _ := testEngine(t)
	ours := Manifest{Capabilities: Capabilities{Compression: []string{CompressionZstd, CompressionGzip}}}

	neg, err := e.NegotiateSync(ours, Manifest{Capabilities: Capabilities{Compression: []string{CompressionGzip}}})
	require.NoError(t, err)
	assert.Equal(t, CompressionGzip, neg.Compression)

	neg, err = e.NegotiateSync(ours, Manifest{Capabilities: Capabilities{Compression: []string{CompressionGzip, CompressionZstd}}})
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, neg.Compression)

	neg, err = e.NegotiateSync(ours, Manifest{Capabilities: Capabilities{Compression: []string{"lz4"}}})
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, neg.Compression)
}

func TestGenerateManifestFields(t *testing.T) {
	old := msgWith("old", PriorityNormal)
	old.CreatedAt = time.Now().Add(-time.Hour)
	old.DestinationGeoZone = "zone-a"
	fresh := msgWith("fresh", PriorityHigh)
	fresh.DestinationGeoZone = "zone-b"

	e, _, _ := testEngine(t, old, fresh)
	m, err := e.GenerateManifest()
	require.NoError(t, err)

	assert.Equal(t, "local-peer", m.PeerID)
	assert.Equal(t, 2, m.MessageCount)
	assert.NotEmpty(t, m.FilterState)
	assert.Equal(t, []string{"zone-a", "zone-b"}, m.Zones)
	assert.Equal(t, e.constants.StorageCapacity-200, m.StorageHeadroom)
	assert.Equal(t, ProtocolVersion, m.Capabilities.ProtocolVersion)
	assert.True(t, m.OldestMessage.Before(m.NewestMessage))
}
