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

// Capabilities describes what a peer can do. Compression is ordered
// best-first.
type Capabilities struct {
	ProtocolVersion int      `json:"protocolVersion"`
	Compression     []string `json:"compression,omitempty"`
}

// Manifest is a peer's advertised summary: everything the other side
// needs to negotiate a sync. Built fresh per attempt, never mutated
// after creation.
type Manifest struct {
	PeerID          string       `json:"peerId"`
	Timestamp       time.Time    `json:"timestamp"`
	MessageCount    int          `json:"messageCount"`
	FilterState     []byte       `json:"filterState,omitempty"`
	OldestMessage   time.Time    `json:"oldestMessage"`
	NewestMessage   time.Time    `json:"newestMessage"`
	StorageHeadroom int64        `json:"storageHeadroom"`
	Zones           []string     `json:"zones,omitempty"`
	Capabilities    Capabilities `json:"capabilities"`
}

// Negotiation is the computed diff between two manifests. Estimates
// are planning figures from flat per-message assumptions, not
// commitments.
//
// MessagesWeNeed is always empty by design: each side only computes
// what the *other* is missing, and the peer derives its own list when
// it negotiates against our manifest. The asymmetry is part of the
// protocol; do not fill the field in.
type Negotiation struct {
	MessagesPeerNeeds []string      `json:"messagesPeerNeeds"`
	MessagesWeNeed    []string      `json:"messagesWeNeed"`
	EstimatedBytes    int64         `json:"estimatedBytes"`
	EstimatedDuration time.Duration `json:"estimatedDuration"`
	Compression       string        `json:"compression"`
}

// Constraints is the budget a sync session runs under. It is local to
// one side and never crosses the wire.
type Constraints struct {
	MaxDuration   time.Duration
	MaxBytes      int64
	MinPriority   Priority
	TargetZones   []string
	PrioritizeOwn bool
	OwnOnly       bool // relay disabled: carry only our own messages
}

type ErrorCode string

const (
	CodeSendFailed  ErrorCode = "SEND_FAILED"
	CodeStoreFailed ErrorCode = "STORE_FAILED"
	CodeSyncFailed  ErrorCode = "SYNC_FAILED"
)

type SyncError struct {
	Code      ErrorCode `json:"code"`
	MessageID string    `json:"messageId,omitempty"`
	Err       error     `json:"-"`
}

func (e SyncError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Err.Error()
}

// Result is the outcome of one sync session. Partial progress is
// always preserved and reported, never rolled back.
type Result struct {
	Success          bool          `json:"success"`
	MessagesSent     int           `json:"messagesSent"`
	MessagesReceived int           `json:"messagesReceived"`
	BytesSent        int64         `json:"bytesSent"`
	BytesReceived    int64         `json:"bytesReceived"`
	Duration         time.Duration `json:"duration"`
	Errors           []SyncError   `json:"errors,omitempty"`
	FailedMessages   []string      `json:"failedMessages,omitempty"`
}
