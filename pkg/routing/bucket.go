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
	"time"

	list "github.com/bahlo/generic-list-go"
)

const (
	// DefaultK is the contact capacity of one bucket.
	DefaultK = 20
	// DefaultReplacementCap bounds the overflow replacement cache.
	DefaultReplacementCap = 8
)

// AddResult reports what an insert did. When a full bucket refuses a
// new contact, NeedsPing names the current least-recently-seen member;
// the caller decides whether to verify it and evict.
type AddResult struct {
	Added     bool
	Updated   bool
	NeedsPing *Contact
}

// kBucket is a bounded, most-recently-seen-first contact list for one
// distance band, plus a replacement cache of contacts that arrived
// while the bucket was full.
type kBucket struct {
	contacts     *list.List[Contact]
	replacements []Contact
	lastRefresh  time.Time
	k            int
	replCap      int
}

func newKBucket(k int, replCap int) *kBucket {
	return &kBucket{
		contacts:    list.New[Contact](),
		k:           k,
		replCap:     replCap,
		lastRefresh: time.Now(),
	}
}

func (b *kBucket) find(id NodeID) *list.Element[Contact] {
	for e := b.contacts.Front(); e != nil; e = e.Next() {
		if e.Value.ID == id {
			return e
		}
	}
	return nil
}

func (b *kBucket) addContact(c Contact) AddResult {
	if e := b.find(c.ID); e != nil {
		existing := e.Value
		existing.LastSeen = time.Now()
		existing.PeerID = c.PeerID
		if c.RTT > 0 {
			existing.RTT = c.RTT
		}
		if len(c.Endpoints) > 0 {
			existing.Endpoints = c.Endpoints
		}
		e.Value = existing
		b.contacts.MoveToFront(e)
		return AddResult{Updated: true}
	}
	if b.contacts.Len() < b.k {
		c.LastSeen = time.Now()
		b.contacts.PushFront(c)
		return AddResult{Added: true}
	}
	b.queueReplacement(c)
	lru := b.contacts.Back().Value
	return AddResult{NeedsPing: &lru}
}

func (b *kBucket) removeContact(id NodeID) bool {
	e := b.find(id)
	if e == nil {
		return false
	}
	b.contacts.Remove(e)
	if len(b.replacements) > 0 {
		promoted := b.replacements[0]
		b.replacements = b.replacements[1:]
		promoted.LastSeen = time.Now()
		b.contacts.PushFront(promoted)
	}
	return true
}

func (b *kBucket) contact(id NodeID) (Contact, bool) {
	if e := b.find(id); e != nil {
		return e.Value, true
	}
	return Contact{}, false
}

func (b *kBucket) recordFailure(id NodeID) bool {
	e := b.find(id)
	if e == nil {
		return false
	}
	c := e.Value
	c.FailureCount++
	e.Value = c
	return true
}

func (b *kBucket) resetFailures(id NodeID) bool {
	e := b.find(id)
	if e == nil {
		return false
	}
	c := e.Value
	c.FailureCount = 0
	e.Value = c
	return true
}

func (b *kBucket) staleContacts(threshold time.Duration, now time.Time) []Contact {
	var stale []Contact
	for e := b.contacts.Front(); e != nil; e = e.Next() {
		if now.Sub(e.Value.LastSeen) > threshold {
			stale = append(stale, e.Value)
		}
	}
	return stale
}

func (b *kBucket) needsRefresh(interval time.Duration, now time.Time) bool {
	return now.Sub(b.lastRefresh) > interval
}

func (b *kBucket) markRefreshed(now time.Time) {
	b.lastRefresh = now
}

func (b *kBucket) len() int {
	return b.contacts.Len()
}

func (b *kBucket) all() []Contact {
	out := make([]Contact, 0, b.contacts.Len())
	for e := b.contacts.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value)
	}
	return out
}

// queueReplacement remembers an overflow contact, dropping the oldest
// cached entry when the cache itself is full.
func (b *kBucket) queueReplacement(c Contact) {
	for i := range b.replacements {
		if b.replacements[i].ID == c.ID {
			b.replacements[i] = c
			return
		}
	}
	if len(b.replacements) >= b.replCap {
		copy(b.replacements, b.replacements[1:])
		b.replacements = b.replacements[:b.replCap-1]
	}
	b.replacements = append(b.replacements, c)
}
