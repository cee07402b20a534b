package routing

import (
	"testing"
	"time"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"

	storage "github.com/opencourier/meshsync/pkg/storage"
)

func TestTableIgnoresLocalID(t *testing.T) {
	local := NewRandomNodeID()
	tbl := NewTable(local)
	res := tbl.AddContact(NewContact(local, "self"))
	assert.False(t, res.Added)
	assert.Equal(t, 0, tbl.TotalContacts())
}

func TestTableRoutesToOneBucket(t *testing.T) {
	var local NodeID
	tbl := NewTable(local)
	tbl.AddContact(NewContact(idWithLastByte(0x01), "a")) // bucket 159
	tbl.AddContact(NewContact(idWithLastByte(0x02), "b")) // bucket 158
	tbl.AddContact(NewContact(idWithLastByte(0x03), "c")) // bucket 158

	dist := tbl.BucketDistribution()
	require.Len(t, dist, IDBits)
	assert.Equal(t, 1, dist[159])
	assert.Equal(t, 2, dist[158])
	assert.Equal(t, 3, tbl.TotalContacts())
	assert.Equal(t, 2, tbl.ActiveBuckets())
}

func TestTableClosestContacts(t *testing.T) {
	var local NodeID
	tbl := NewTable(local)
	for _, b := range []byte{0x01, 0x02, 0x04, 0x08, 0x10} {
		tbl.AddContact(NewContact(idWithLastByte(b), "p"))
	}
	target := idWithLastByte(0x03)
	closest := tbl.ClosestContacts(target, 3)
	require.Len(t, closest, 3)
	// XOR distances to 0x03: 0x02->0x01, 0x01->0x02, 0x04->0x07.
	assert.Equal(t, idWithLastByte(0x02), closest[0].ID)
	assert.Equal(t, idWithLastByte(0x01), closest[1].ID)
	assert.Equal(t, idWithLastByte(0x04), closest[2].ID)
}

func TestTableClosestContactsCountClamped(t *testing.T) {
	tbl := NewTable(NewRandomNodeID())
	tbl.AddContact(NewContact(NewRandomNodeID(), "only"))
	assert.Len(t, tbl.ClosestContacts(NewRandomNodeID(), 20), 1)
}

func TestTableFailuresAndStale(t *testing.T) {
	var local NodeID
	tbl := NewTable(local)
	id := idWithLastByte(0x01)
	tbl.AddContact(NewContact(id, "p"))

	assert.True(t, tbl.RecordFailure(id))
	c, ok := tbl.Contact(id)
	require.True(t, ok)
	assert.Equal(t, uint(1), c.FailureCount)
	assert.True(t, tbl.ResetFailures(id))

	assert.Empty(t, tbl.StaleContacts(time.Hour))
}

func TestTableRefreshTargets(t *testing.T) {
	local := NewRandomNodeID()
	tbl := NewTable(local)
	targets := tbl.RefreshTargets(-time.Second)
	require.Len(t, targets, IDBits)
	for i, target := range targets {
		assert.Equal(t, i, local.DistanceTo(target).BucketIndex())
	}

	tbl.MarkRefreshed(0)
	assert.Len(t, tbl.RefreshTargets(time.Hour), 0)
}

func TestTablePersistenceRoundTrip(t *testing.T) {
	var local NodeID
	tbl := NewTable(local)
	c := NewContact(idWithLastByte(0x05), "peer-5")
	c.RTT = 120 * time.Millisecond
	c.Endpoints = []string{"ble:aa:bb", "wifi:10.0.0.5"}
	tbl.AddContact(c)
	tbl.AddContact(NewContact(idWithLastByte(0x09), "peer-9"))
	tbl.RecordFailure(idWithLastByte(0x09))

	st := storage.NewMemoryStore()
	require.NoError(t, tbl.Save(st))

	loaded, err := LoadTable(st, local)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.TotalContacts())

	got, ok := loaded.Contact(idWithLastByte(0x05))
	require.True(t, ok)
	assert.Equal(t, "peer-5", got.PeerID)
	assert.Equal(t, 120*time.Millisecond, got.RTT)
	assert.Equal(t, []string{"ble:aa:bb", "wifi:10.0.0.5"}, got.Endpoints)

	got, ok = loaded.Contact(idWithLastByte(0x09))
	require.True(t, ok)
	assert.Equal(t, uint(1), got.FailureCount)
}
