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

import (
	"sort"
	"time"

	log "github.com/apex/log"

	bloomfilter "github.com/opencourier/meshsync/util/bloomfilter"
)

// SendFunc transfers one message to the peer and may fail per call.
type SendFunc func(msg StoredMessage) error

// ReceiveFunc collects whatever the peer decided to push: one bulk
// call per session, not a stream.
type ReceiveFunc func() ([]StoredMessage, error)

// Engine negotiates and executes bounded, bidirectional message
// exchange with one peer at a time. It owns its bloom filter and is
// the only writer to it; concurrent sessions with several peers need
// several engines.
type Engine interface {
	GenerateManifest() (Manifest, error)
	NegotiateSync(ours Manifest, theirs Manifest) (Negotiation, error)
	PrioritizeForSync(ids []string, msgs map[string]StoredMessage, c Constraints) []string
	PerformSync(send SendFunc, receive ReceiveFunc, peer Manifest, c Constraints) Result
	QuickSync(send SendFunc, receive ReceiveFunc, maxDuration time.Duration) Result
}

type engine struct {
	peerID    string
	store     MessageStore
	filter    MembershipFilter
	constants *Constants
	logger    *log.Entry
}

func NewEngine(peerID string, store MessageStore, filter MembershipFilter, cs *Constants) Engine {
	return &engine{
		peerID:    peerID,
		store:     store,
		filter:    filter,
		constants: cs,
		logger:    log.WithField("module", "courier"),
	}
}

// GenerateManifest snapshots the local store and filter into a fresh
// manifest. Headroom is the capacity ceiling minus bytes used; treat a
// non-positive value as "full".
func (e *engine) GenerateManifest() (Manifest, error) {
	stats, err := e.store.Stats()
	if err != nil {
		return Manifest{}, err
	}
	state, err := e.filter.Export()
	if err != nil {
		return Manifest{}, err
	}
	zones, err := e.presentZones()
	if err != nil {
		return Manifest{}, err
	}
	return Manifest{
		PeerID:          e.peerID,
		Timestamp:       time.Now(),
		MessageCount:    stats.MessageCount,
		FilterState:     state,
		OldestMessage:   stats.OldestMessage,
		NewestMessage:   stats.NewestMessage,
		StorageHeadroom: e.constants.StorageCapacity - stats.TotalBytes,
		Zones:           zones,
		Capabilities: Capabilities{
			ProtocolVersion: ProtocolVersion,
			Compression:     e.constants.CompressionPreference,
		},
	}, nil
}

// NegotiateSync diffs our store against the peer's filter. An id goes
// into MessagesPeerNeeds whenever the filter does not report possible
// membership; false positives can only make us skip a message the
// peer already has, never the reverse.
func (e *engine) NegotiateSync(ours Manifest, theirs Manifest) (Negotiation, error) {
	ids, err := e.store.AllIDs()
	if err != nil {
		return Negotiation{}, err
	}
	var peerFilter *bloomfilter.Filter
	if len(theirs.FilterState) > 0 {
		peerFilter, err = bloomfilter.ParseFilter(theirs.FilterState)
		if err != nil {
			return Negotiation{}, err
		}
	}
	needs := make([]string, 0, len(ids))
	for _, id := range ids {
		if peerFilter == nil || !peerFilter.Check([]byte(id)) {
			needs = append(needs, id)
		}
	}
	estBytes := int64(len(needs)) * e.constants.MessageSizeEstimate
	estDuration := time.Duration(0)
	if e.constants.LinkThroughput > 0 {
		estDuration = time.Duration(estBytes * int64(time.Second) / e.constants.LinkThroughput)
	}
	return Negotiation{
		MessagesPeerNeeds: needs,
		MessagesWeNeed:    []string{},
		EstimatedBytes:    estBytes,
		EstimatedDuration: estDuration,
		Compression:       pickCompression(ours.Capabilities.Compression, theirs.Capabilities.Compression),
	}, nil
}

// PrioritizeForSync filters by minimum priority and target zone, sorts
// by own-first (when requested), priority, then age, and greedily
// packs the byte budget. Selection stops at the first message that
// would overflow the budget; this is deliberately not optimal packing.
func (e *engine) PrioritizeForSync(ids []string, msgs map[string]StoredMessage, c Constraints) []string {
	selected := make([]StoredMessage, 0, len(ids))
	for _, id := range ids {
		m, ok := msgs[id]
		if !ok {
			continue
		}
		if m.Priority < c.MinPriority {
			continue
		}
		if c.OwnOnly && !m.IsOwnMessage {
			continue
		}
		if len(c.TargetZones) > 0 && !zoneMatch(m.DestinationGeoZone, c.TargetZones) {
			continue
		}
		selected = append(selected, m)
	}
	sort.SliceStable(selected, func(i, j int) bool {
		a, b := selected[i], selected[j]
		if c.PrioritizeOwn && a.IsOwnMessage != b.IsOwnMessage {
			return a.IsOwnMessage
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	out := make([]string, 0, len(selected))
	var total int64
	for _, m := range selected {
		if c.MaxBytes > 0 && total+int64(m.SizeBytes) > c.MaxBytes {
			break
		}
		total += int64(m.SizeBytes)
		out = append(out, m.ID)
	}
	return out
}

// PerformSync runs a full session: manifest, negotiation, a send phase
// and then a receive phase, all against one budget clock. Per-message
// failures are recorded and skipped; only a failure before any
// exchange aborts the session.
func (e *engine) PerformSync(send SendFunc, receive ReceiveFunc, peer Manifest, c Constraints) Result {
	start := time.Now()
	ours, err := e.GenerateManifest()
	if err != nil {
		return e.abortedResult(start, err)
	}
	neg, err := e.NegotiateSync(ours, peer)
	if err != nil {
		return e.abortedResult(start, err)
	}
	msgs, err := e.messagesByID(neg.MessagesPeerNeeds)
	if err != nil {
		return e.abortedResult(start, err)
	}
	order := e.PrioritizeForSync(neg.MessagesPeerNeeds, msgs, c)
	e.logger.Infof("Syncing with %s: %d of %d candidates selected, compression %s.",
		peer.PeerID, len(order), len(neg.MessagesPeerNeeds), neg.Compression)

	var res Result
	for _, id := range order {
		if c.MaxDuration > 0 && time.Since(start) > c.MaxDuration {
			e.logger.Warn("Send phase truncated by duration budget.")
			break
		}
		out, err := encodePayload(msgs[id], neg.Compression)
		if err == nil {
			err = send(out)
		}
		if err != nil {
			res.Errors = append(res.Errors, SyncError{Code: CodeSendFailed, MessageID: id, Err: err})
			res.FailedMessages = append(res.FailedMessages, id)
			continue
		}
		res.MessagesSent++
		res.BytesSent += int64(msgs[id].SizeBytes)
	}

	incoming, err := receive()
	if err != nil {
		res.Errors = append(res.Errors, SyncError{Code: CodeSyncFailed, Err: err})
	}
	for _, msg := range incoming {
		if c.MaxDuration > 0 && time.Since(start) > c.MaxDuration {
			e.logger.Warn("Receive phase truncated by duration budget.")
			break
		}
		if c.MaxBytes > 0 && res.BytesReceived+int64(msg.SizeBytes) > c.MaxBytes {
			e.logger.Warn("Receive phase truncated by byte budget.")
			break
		}
		stored, err := decodePayload(msg, neg.Compression)
		if err == nil {
			err = e.store.Store(stored)
		}
		if err != nil {
			res.Errors = append(res.Errors, SyncError{Code: CodeStoreFailed, MessageID: msg.ID, Err: err})
			res.FailedMessages = append(res.FailedMessages, msg.ID)
			continue
		}
		e.filter.Add(stored.ID)
		res.MessagesReceived++
		res.BytesReceived += int64(msg.SizeBytes)
	}

	res.Duration = time.Since(start)
	res.Success = len(res.Errors) == 0
	return res
}

// QuickSync is the entry point for brief encounters: the peer is
// treated as needing everything we have, only HIGH and EMERGENCY
// traffic is considered, and a small byte cap applies.
func (e *engine) QuickSync(send SendFunc, receive ReceiveFunc, maxDuration time.Duration) Result {
	if maxDuration <= 0 {
		maxDuration = e.constants.QuickSyncDuration
	}
	peer := Manifest{
		PeerID:       "opportunistic",
		Timestamp:    time.Now(),
		Capabilities: Capabilities{ProtocolVersion: ProtocolVersion},
	}
	return e.PerformSync(send, receive, peer, Constraints{
		MaxDuration:   maxDuration,
		MaxBytes:      e.constants.QuickSyncMaxBytes,
		MinPriority:   PriorityHigh,
		PrioritizeOwn: true,
	})
}

func (e *engine) abortedResult(start time.Time, err error) Result {
	e.logger.Errorf("Sync aborted before exchange: %+v", err)
	return Result{
		Errors:   []SyncError{{Code: CodeSyncFailed, Err: err}},
		Duration: time.Since(start),
	}
}

func (e *engine) messagesByID(ids []string) (map[string]StoredMessage, error) {
	if len(ids) == 0 {
		return map[string]StoredMessage{}, nil
	}
	msgs, err := e.store.Query(MessageFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	out := make(map[string]StoredMessage, len(msgs))
	for _, m := range msgs {
		out[m.ID] = m
	}
	return out, nil
}

func (e *engine) presentZones() ([]string, error) {
	msgs, err := e.store.Query(MessageFilter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, m := range msgs {
		if m.DestinationGeoZone != "" {
			seen[m.DestinationGeoZone] = struct{}{}
		}
	}
	zones := make([]string, 0, len(seen))
	for z := range seen {
		zones = append(zones, z)
	}
	sort.Strings(zones)
	return zones, nil
}

func encodePayload(msg StoredMessage, compression string) (StoredMessage, error) {
	if compression == CompressionNone || compression == "" || len(msg.Payload) == 0 {
		return msg, nil
	}
	out, err := Compress(compression, msg.Payload)
	if err != nil {
		return StoredMessage{}, err
	}
	msg.Payload = out
	return msg, nil
}

func decodePayload(msg StoredMessage, compression string) (StoredMessage, error) {
	if compression == CompressionNone || compression == "" || len(msg.Payload) == 0 {
		return msg, nil
	}
	out, err := Decompress(compression, msg.Payload)
	if err != nil {
		return StoredMessage{}, err
	}
	msg.Payload = out
	return msg, nil
}

func zoneMatch(zone string, targets []string) bool {
	for _, t := range targets {
		if zone == t {
			return true
		}
	}
	return false
}
