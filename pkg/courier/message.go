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

package courier

import "time"

// Priority orders messages for relay. Higher values always travel
// first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityEmergency
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// StoredMessage is the engine's view of one encrypted message at rest.
// The payload is opaque ciphertext; the engine never looks inside it.
type StoredMessage struct {
	ID                 string    `json:"id"`
	Priority           Priority  `json:"priority"`
	CreatedAt          time.Time `json:"createdAt"`
	SizeBytes          int       `json:"sizeBytes"`
	IsOwnMessage       bool      `json:"isOwnMessage"`
	DestinationGeoZone string    `json:"destinationGeoZone,omitempty"`
	Payload            []byte    `json:"payload,omitempty"`
}

// MessageFilter narrows a store query. Zero values mean "no
// constraint".
type MessageFilter struct {
	IDs         []string
	MinPriority *Priority
	Zone        string
	Limit       int
}

type StoreStats struct {
	MessageCount  int
	OldestMessage time.Time
	NewestMessage time.Time
	TotalBytes    int64
}

// MessageStore is the encrypted message store the engine reads and
// writes. It is owned elsewhere; the engine only consumes this
// contract.
type MessageStore interface {
	Query(f MessageFilter) ([]StoredMessage, error)
	Store(msg StoredMessage) error
	BulkStore(msgs []StoredMessage) error
	AllIDs() ([]string, error)
	Stats() (StoreStats, error)
}

// MembershipFilter is the probabilistic set the engine maintains over
// message ids: possible false positives, never false negatives.
type MembershipFilter interface {
	Add(id string)
	MightContain(id string) bool
	Export() ([]byte, error)
}
