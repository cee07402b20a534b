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
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// IDLength is the number of bytes in a NodeID.
const IDLength = 20

// IDBits is the number of buckets in a routing table: one per bit.
const IDBits = IDLength * 8

// NoBucket is the bucket index of a zero distance. An id is never
// bucketed against itself.
const NoBucket = -1

var ErrBadLength = errors.New("routing: identifier length mismatch")

// NodeID is a 160-bit identifier in an XOR metric space.
type NodeID [IDLength]byte

// Distance is the XOR of two NodeIDs, compared as an unsigned
// big-endian integer.
type Distance [IDLength]byte

// NewRandomNodeID returns a uniformly random identifier.
func NewRandomNodeID() NodeID {
	var id NodeID
	rand.Read(id[:])
	return id
}

func NodeIDFromBytes(b []byte) (NodeID, error) {
	var id NodeID
	if len(b) != IDLength {
		return id, ErrBadLength
	}
	copy(id[:], b)
	return id, nil
}

func NodeIDFromHex(s string) (NodeID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return NodeID{}, err
	}
	return NodeIDFromBytes(b)
}

// NodeIDFromPublicKey derives an identifier from a public key. The
// same key always yields the same id on every device.
func NodeIDFromPublicKey(pub []byte) NodeID {
	sum := sha256.Sum256(pub)
	var id NodeID
	copy(id[:], sum[:IDLength])
	return id
}

// ContentKey derives a content-addressed identifier from arbitrary
// bytes, placing the content in the same metric space as nodes.
func ContentKey(data []byte) NodeID {
	sum := sha256.Sum256(data)
	var id NodeID
	copy(id[:], sum[:IDLength])
	return id
}

// DistanceTo computes the XOR distance between two identifiers.
func (id NodeID) DistanceTo(other NodeID) Distance {
	var d Distance
	for i := 0; i < IDLength; i++ {
		d[i] = id[i] ^ other[i]
	}
	return d
}

// DistanceBetween computes the XOR distance of two raw identifiers,
// failing when the operand lengths differ.
func DistanceBetween(a []byte, b []byte) (Distance, error) {
	if len(a) != len(b) || len(a) != IDLength {
		return Distance{}, ErrBadLength
	}
	var d Distance
	for i := 0; i < IDLength; i++ {
		d[i] = a[i] ^ b[i]
	}
	return d, nil
}

func (id NodeID) Equals(other NodeID) bool {
	return id == other
}

func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// Cmp compares two distances as big-endian magnitudes, returning
// -1, 0 or 1.
func (d Distance) Cmp(other Distance) int {
	for i := 0; i < IDLength; i++ {
		if d[i] < other[i] {
			return -1
		}
		if d[i] > other[i] {
			return 1
		}
	}
	return 0
}

func (d Distance) Less(other Distance) bool {
	return d.Cmp(other) < 0
}

func (d Distance) IsZero() bool {
	return d == Distance{}
}

// BucketIndex returns the position, counted from the most significant
// bit, of the highest set bit of the distance. A zero distance has no
// bucket and yields NoBucket.
func (d Distance) BucketIndex() int {
	for i := 0; i < IDLength; i++ {
		if d[i] == 0 {
			continue
		}
		for j := 0; j < 8; j++ {
			if (d[i]>>uint(7-j))&0x1 != 0 {
				return i*8 + j
			}
		}
	}
	return NoBucket
}

// RandomIDInBucket returns an identifier whose distance to ref falls
// exactly in the given bucket. Used for routing-table self-tests and
// bucket refresh lookups.
func RandomIDInBucket(ref NodeID, index int) (NodeID, error) {
	if index < 0 || index >= IDBits {
		return NodeID{}, fmt.Errorf("routing: bucket index %d outside [0,%d]", index, IDBits-1)
	}
	var d Distance
	rand.Read(d[:])
	// Zero every bit above the bucket bit, then force the bucket bit
	// itself so the highest set bit lands at exactly this index.
	byteIdx, bitIdx := index/8, uint(index%8)
	for i := 0; i < byteIdx; i++ {
		d[i] = 0
	}
	d[byteIdx] &= 0xff >> bitIdx
	d[byteIdx] |= 1 << (7 - bitIdx)
	var id NodeID
	for i := 0; i < IDLength; i++ {
		id[i] = ref[i] ^ d[i]
	}
	return id, nil
}
