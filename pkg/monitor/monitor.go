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

package monitor

import (
	"fmt"
	"sync"
	"time"

	log "github.com/apex/log"

	routing "github.com/opencourier/meshsync/pkg/routing"
	scheduler "github.com/opencourier/meshsync/util/scheduler"
)

// Monitor periodically derives a health/topology snapshot from the
// routing table and raises state-change, topology-change and
// health-warning events. One subscriber's failure never prevents
// delivery to the others.
type Monitor interface {
	Start(bool)
	Stop()
	Refresh() Topology
	Topology() Topology
	RecordLookup(ok bool)
	Subscribe(func(Event))
}

type netMonitor struct {
	table     routing.Table
	constants *Constants
	sched     scheduler.Scheduler
	logger    *log.Entry

	subs        []func(Event)
	last        Topology
	lastEmitted Topology

	lookupAttempts  int
	lookupSuccesses int

	mtx      sync.Mutex
	isActive bool
}

func NewMonitor(tbl routing.Table, cs *Constants) Monitor {
	m := &netMonitor{
		table:     tbl,
		constants: cs,
		logger:    log.WithField("module", "monitor"),
	}
	m.last = Topology{State: StateDisconnected}
	m.lastEmitted = m.last
	m.sched = scheduler.New(func() { m.Refresh() }, cs.Interval, cs.IntervalRandomness)
	return m
}

func (m *netMonitor) Start(immediate bool) {
	m.mtx.Lock()
	if m.isActive {
		m.mtx.Unlock()
		return
	}
	m.isActive = true
	m.mtx.Unlock()
	m.sched.Start(immediate)
	m.logger.Info("Monitor Activated.")
}

func (m *netMonitor) Stop() {
	m.mtx.Lock()
	if !m.isActive {
		m.mtx.Unlock()
		return
	}
	m.isActive = false
	m.mtx.Unlock()
	m.sched.Stop()
	m.logger.Info("Monitor Shutdown.")
}

func (m *netMonitor) Subscribe(fn func(Event)) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.subs = append(m.subs, fn)
}

func (m *netMonitor) RecordLookup(ok bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.lookupAttempts++
	if ok {
		m.lookupSuccesses++
	}
}

func (m *netMonitor) Topology() Topology {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.last
}

// Refresh recomputes the topology snapshot now and emits whatever
// events the new snapshot warrants.
func (m *netMonitor) Refresh() Topology {
	topo := m.compute()

	m.mtx.Lock()
	prev := m.last
	base := m.lastEmitted
	m.last = topo
	var events []Event
	if topo.State != prev.State {
		events = append(events, StateChange{Old: prev.State, New: topo.State, Topology: topo})
		m.logger.Infof("Network state %s -> %s.", prev.State, topo.State)
	}
	nodeDelta := abs(topo.TotalNodes - base.TotalNodes)
	healthDelta := abs(topo.HealthScore - base.HealthScore)
	if nodeDelta >= m.constants.TopologyNodeDelta || healthDelta >= m.constants.TopologyHealthDelta {
		events = append(events, TopologyChange{Old: base, New: topo})
		m.lastEmitted = topo
	}
	if warnings := m.diagnose(topo); len(warnings) != 0 {
		events = append(events, HealthWarning{Warnings: warnings, Topology: topo})
	}
	subs := m.subs
	m.mtx.Unlock()

	for _, ev := range events {
		m.emit(subs, ev)
	}
	return topo
}

func (m *netMonitor) compute() Topology {
	cs := m.constants
	contacts := m.table.Contacts()
	dist := m.table.BucketDistribution()
	now := time.Now()

	total := len(contacts)
	var (
		direct   int
		stale    int
		failSum  uint
		rttSum   time.Duration
		rttCount int
	)
	for _, c := range contacts {
		if now.Sub(c.LastSeen) <= cs.StaleThreshold {
			direct++
		} else {
			stale++
		}
		failSum += c.FailureCount
		if c.RTT > 0 {
			rttSum += c.RTT
			rttCount++
		}
	}
	var avgLatency time.Duration
	if rttCount > 0 {
		avgLatency = rttSum / time.Duration(rttCount)
	}

	health := 100
	if total < cs.MinNodesConnected {
		health -= cs.NodeDeficitPenalty * (cs.MinNodesConnected - total)
	}
	if total > 0 {
		avgFail := float64(failSum) / float64(total)
		if avgFail > cs.FailureBaseline {
			p := int((avgFail - cs.FailureBaseline) * float64(cs.FailurePenaltyPerUnit))
			if p > cs.FailurePenaltyCap {
				p = cs.FailurePenaltyCap
			}
			health -= p
		}
		health -= int(float64(stale) / float64(total) * float64(cs.StalePenaltyCap))
	}
	m.mtx.Lock()
	attempts, successes := m.lookupAttempts, m.lookupSuccesses
	m.mtx.Unlock()
	if attempts >= cs.MinLookupSamples {
		rate := float64(successes) / float64(attempts)
		if rate < cs.LookupTarget {
			health -= int((cs.LookupTarget - rate) / cs.LookupTarget * float64(cs.LookupPenaltyCap))
		}
	}
	if health < 0 {
		health = 0
	} else if health > 100 {
		health = 100
	}

	var state NetworkState
	switch {
	case total == 0 || total < cs.MinNodesDegraded:
		state = StateDisconnected
	case total < cs.MinNodesConnected || health < cs.DegradedHealth:
		state = StateDegraded
	default:
		state = StateConnected
	}

	return Topology{
		State:                state,
		TotalNodes:           total,
		DirectPeers:          direct,
		EstimatedNetworkSize: m.estimateSize(total, dist),
		BucketDistribution:   dist,
		AvgLatency:           avgLatency,
		HealthScore:          health,
	}
}

// estimateSize extrapolates the network size from how deep the known
// buckets reach. Coverage of the id space shrinks as higher buckets
// fill, so the multiplier decays with the highest non-empty index.
func (m *netMonitor) estimateSize(total int, dist []int) int {
	if total == 0 {
		return 0
	}
	highest := routing.NoBucket
	for i, n := range dist {
		if n > 0 {
			highest = i
		}
	}
	if highest == routing.NoBucket {
		return total
	}
	exp := m.constants.CoverageBase - highest/m.constants.CoverageDivisor
	if exp < 0 {
		exp = 0
	}
	return total * (1 << uint(exp))
}

func (m *netMonitor) diagnose(topo Topology) []string {
	cs := m.constants
	var warnings []string
	if topo.AvgLatency > cs.LatencyWarning {
		warnings = append(warnings, fmt.Sprintf("average latency %s exceeds %s", topo.AvgLatency, cs.LatencyWarning))
	}
	if topo.HealthScore < cs.HealthWarningScore {
		warnings = append(warnings, fmt.Sprintf("health score %d below %d", topo.HealthScore, cs.HealthWarningScore))
	}
	if topo.TotalNodes >= cs.MinNodesDegraded {
		for i, n := range topo.BucketDistribution {
			if float64(n) > float64(topo.TotalNodes)*cs.BucketImbalanceShare {
				warnings = append(warnings, fmt.Sprintf("bucket %d holds %d of %d contacts", i, n, topo.TotalNodes))
				break
			}
		}
	}
	return warnings
}

func (m *netMonitor) emit(subs []func(Event), ev Event) {
	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Errorf("Event listener panic: %+v", r)
				}
			}()
			sub(ev)
		}()
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
