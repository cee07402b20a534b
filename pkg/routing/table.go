/*
 Copyright (C) 2024-2026, The meshsync Go Library Authors

 This file is part of meshsync: A Go Library for Offline-Tolerant
 Mesh Synchronization.

 meshsync is free software; you can redistribute it and/or
 modify it under the terms of the GNU Lesser General Public
 License as published by the Free Software Foundation; either
 version 2.1 of the License, or any later version.

 meshsync is distributed in the hope that it will be useful,
 but WITHOUT ANY WARRANTY; without even the implied warranty of
 MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
 See the GNU Lesser General Public License for more details.

 A copy of the GNU Lesser General Public License is provided by this
 library under LICENSE.md. If absent, it can be found within the
 GitHub repository:
          https://github.com/opencourier/meshsync
*/

package routing

import (
	"sort"
	"sync"
	"time"

	log "github.com/apex/log"

	storage "github.com/opencourier/meshsync/pkg/storage"
)

// Table owns the 160 k-buckets around one local identifier. Every
// contact lives in exactly one bucket, chosen by the position of the
// highest set bit of its XOR distance to the local id. Mutation is
// atomic per call; readers never observe a half-updated bucket.
type Table interface {
	LocalID() NodeID
	AddContact(c Contact) AddResult
	RemoveContact(id NodeID) bool
	Contact(id NodeID) (Contact, bool)
	Contacts() []Contact
	ClosestContacts(target NodeID, count int) []Contact
	RecordFailure(id NodeID) bool
	ResetFailures(id NodeID) bool
	StaleContacts(threshold time.Duration) []Contact
	RefreshTargets(interval time.Duration) []NodeID
	MarkRefreshed(index int)
	BucketDistribution() []int
	TotalContacts() int
	ActiveBuckets() int
	Save(st storage.Store) error
}

type table struct {
	local   NodeID
	buckets [IDBits]*kBucket
	logger  *log.Entry
	mtx     sync.RWMutex
}

func NewTable(local NodeID) Table {
	t := &table{
		local:  local,
		logger: log.WithField("module", "routing"),
	}
	for i := 0; i < IDBits; i++ {
		t.buckets[i] = newKBucket(DefaultK, DefaultReplacementCap)
	}
	return t
}

func (t *table) LocalID() NodeID {
	return t.local
}

func (t *table) bucketFor(id NodeID) *kBucket {
	idx := t.local.DistanceTo(id).BucketIndex()
	if idx == NoBucket {
		return nil
	}
	return t.buckets[idx]
}

func (t *table) AddContact(c Contact) AddResult {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	b := t.bucketFor(c.ID)
	if b == nil {
		// The local id has no bucket.
		return AddResult{}
	}
	return b.addContact(c)
}

func (t *table) RemoveContact(id NodeID) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if b := t.bucketFor(id); b != nil {
		return b.removeContact(id)
	}
	return false
}

func (t *table) Contact(id NodeID) (Contact, bool) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	if b := t.bucketFor(id); b != nil {
		return b.contact(id)
	}
	return Contact{}, false
}

func (t *table) Contacts() []Contact {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	var out []Contact
	for _, b := range t.buckets {
		out = append(out, b.all()...)
	}
	return out
}

// ClosestContacts walks outward from the target's bucket until count
// candidates are gathered, then sorts them by XOR distance to the
// target.
func (t *table) ClosestContacts(target NodeID, count int) []Contact {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	start := t.local.DistanceTo(target).BucketIndex()
	if start == NoBucket {
		start = IDBits - 1
	}
	candidates := t.buckets[start].all()
	for i := 1; (start-i >= 0 || start+i < IDBits) && len(candidates) < count; i++ {
		if start-i >= 0 {
			candidates = append(candidates, t.buckets[start-i].all()...)
		}
		if start+i < IDBits {
			candidates = append(candidates, t.buckets[start+i].all()...)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID.DistanceTo(target).Less(candidates[j].ID.DistanceTo(target))
	})
	if count > len(candidates) {
		count = len(candidates)
	}
	return candidates[:count]
}

func (t *table) RecordFailure(id NodeID) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if b := t.bucketFor(id); b != nil {
		return b.recordFailure(id)
	}
	return false
}

func (t *table) ResetFailures(id NodeID) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if b := t.bucketFor(id); b != nil {
		return b.resetFailures(id)
	}
	return false
}

func (t *table) StaleContacts(threshold time.Duration) []Contact {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	now := time.Now()
	var stale []Contact
	for _, b := range t.buckets {
		stale = append(stale, b.staleContacts(threshold, now)...)
	}
	return stale
}

// RefreshTargets returns one lookup target inside every bucket whose
// refresh interval has lapsed. Lookups seeded with these ids repopulate
// exactly the bands that have gone quiet.
func (t *table) RefreshTargets(interval time.Duration) []NodeID {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	now := time.Now()
	var targets []NodeID
	for i, b := range t.buckets {
		if !b.needsRefresh(interval, now) {
			continue
		}
		id, err := RandomIDInBucket(t.local, i)
		if err != nil {
			continue
		}
		targets = append(targets, id)
	}
	return targets
}

func (t *table) MarkRefreshed(index int) {
	if index < 0 || index >= IDBits {
		return
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.buckets[index].markRefreshed(time.Now())
}

func (t *table) BucketDistribution() []int {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	dist := make([]int, IDBits)
	for i, b := range t.buckets {
		dist[i] = b.len()
	}
	return dist
}

func (t *table) TotalContacts() int {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	total := 0
	for _, b := range t.buckets {
		total += b.len()
	}
	return total
}

func (t *table) ActiveBuckets() int {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	active := 0
	for _, b := range t.buckets {
		if b.len() > 0 {
			active++
		}
	}
	return active
}
