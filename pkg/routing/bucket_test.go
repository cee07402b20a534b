package routing

import (
	"fmt"
	"testing"
	"time"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

func testContact(n int) Contact {
	var id NodeID
	id[IDLength-1] = byte(n)
	id[IDLength-2] = byte(n >> 8)
	return NewContact(id, fmt.Sprintf("peer-%d", n))
}

func TestBucketAcceptsExactlyK(t *testing.T) {
	b := newKBucket(4, 2)
	for i := 1; i <= 4; i++ {
		res := b.addContact(testContact(i))
		assert.True(t, res.Added)
		assert.Nil(t, res.NeedsPing)
	}
	assert.Equal(t, 4, b.len())

	overflow := testContact(5)
	res := b.addContact(overflow)
	assert.False(t, res.Added)
	assert.False(t, res.Updated)
	require.NotNil(t, res.NeedsPing)
	// The least-recently-seen member is the first one inserted.
	assert.Equal(t, testContact(1).ID, res.NeedsPing.ID)
	assert.Equal(t, 4, b.len())
	require.Len(t, b.replacements, 1)
	assert.Equal(t, overflow.ID, b.replacements[0].ID)
}

func TestBucketUpdateMovesToFront(t *testing.T) {
	b := newKBucket(4, 2)
	for i := 1; i <= 3; i++ {
		b.addContact(testContact(i))
	}
	res := b.addContact(testContact(1))
	assert.True(t, res.Updated)
	assert.False(t, res.Added)
	assert.Equal(t, testContact(1).ID, b.all()[0].ID)
	assert.Equal(t, 3, b.len())
}

func TestBucketRemovePromotesReplacement(t *testing.T) {
	b := newKBucket(3, 2)
	for i := 1; i <= 3; i++ {
		b.addContact(testContact(i))
	}
	overflow := testContact(9)
	b.addContact(overflow)
	require.Len(t, b.replacements, 1)

	assert.True(t, b.removeContact(testContact(2).ID))
	assert.Equal(t, 3, b.len())
	assert.Empty(t, b.replacements)
	_, ok := b.contact(overflow.ID)
	assert.True(t, ok)
}

func TestBucketReplacementCacheBounded(t *testing.T) {
	b := newKBucket(2, 2)
	b.addContact(testContact(1))
	b.addContact(testContact(2))
	b.addContact(testContact(3))
	b.addContact(testContact(4))
	b.addContact(testContact(5))
	require.Len(t, b.replacements, 2)
	// Oldest cached entry was dropped.
	assert.Equal(t, testContact(4).ID, b.replacements[0].ID)
	assert.Equal(t, testContact(5).ID, b.replacements[1].ID)
}

func TestBucketFailureCounters(t *testing.T) {
	b := newKBucket(4, 2)
	c := testContact(1)
	b.addContact(c)

	assert.True(t, b.recordFailure(c.ID))
	assert.True(t, b.recordFailure(c.ID))
	got, _ := b.contact(c.ID)
	assert.Equal(t, uint(2), got.FailureCount)

	assert.True(t, b.resetFailures(c.ID))
	got, _ = b.contact(c.ID)
	assert.Equal(t, uint(0), got.FailureCount)

	assert.False(t, b.recordFailure(testContact(99).ID))
}

func TestBucketStaleContacts(t *testing.T) {
	b := newKBucket(4, 2)
	b.addContact(testContact(1))
	b.addContact(testContact(2))

	e := b.find(testContact(1).ID)
	c := e.Value
	c.LastSeen = time.Now().Add(-time.Hour)
	e.Value = c

	stale := b.staleContacts(30*time.Minute, time.Now())
	require.Len(t, stale, 1)
	assert.Equal(t, testContact(1).ID, stale[0].ID)
}

func TestBucketNeedsRefresh(t *testing.T) {
	b := newKBucket(4, 2)
	now := time.Now()
	assert.False(t, b.needsRefresh(time.Hour, now))
	assert.True(t, b.needsRefresh(time.Hour, now.Add(2*time.Hour)))
	b.markRefreshed(now.Add(2 * time.Hour))
	assert.False(t, b.needsRefresh(time.Hour, now.Add(2*time.Hour)))
}
