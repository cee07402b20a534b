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

package mesh

import (
	"errors"
	"sync"

	log "github.com/apex/log"

	courier "github.com/opencourier/meshsync/pkg/courier"
	monitor "github.com/opencourier/meshsync/pkg/monitor"
	power "github.com/opencourier/meshsync/pkg/power"
	routing "github.com/opencourier/meshsync/pkg/routing"
	storage "github.com/opencourier/meshsync/pkg/storage"
)

var (
	ErrAsleep      = errors.New("mesh: device is asleep")
	ErrRelayBudget = errors.New("mesh: relay budget for this wake exhausted")
)

// Session wires the duty-cycle controller, the network monitor and the
// courier engine into the wake/sync/sleep loop: the controller wakes
// the device, the monitor refreshes topology, encounters run bounded
// syncs, and sleep flushes state.
type Session struct {
	controller power.Controller
	monitor    monitor.Monitor
	engine     courier.Engine
	table      routing.Table
	snapshot   storage.Store // routing-table durability, may be nil
	logger     *log.Entry

	mtx sync.Mutex
	// relaysLeft counts messages still allowed this wake; -1 means
	// unlimited.
	relaysLeft int
}

func NewSession(ctrl power.Controller, mon monitor.Monitor, eng courier.Engine, tbl routing.Table, snapshot storage.Store) *Session {
	return &Session{
		controller: ctrl,
		monitor:    mon,
		engine:     eng,
		table:      tbl,
		snapshot:   snapshot,
		logger:     log.WithField("module", "mesh"),
		relaysLeft: -1,
	}
}

func (s *Session) Start() {
	s.controller.OnWake(s.onWake)
	s.controller.OnSleep(s.onSleep)
	s.controller.Start()
	s.logger.Info("Session started.")
}

func (s *Session) Stop() {
	s.controller.Stop()
	s.monitor.Stop()
	s.flush()
	s.logger.Info("Session stopped.")
}

// Encounter runs one bounded sync with a peer that is currently in
// range. It refuses while asleep and once the wake's relay budget is
// spent; budgets and minimum priority come from the active profile.
func (s *Session) Encounter(peer courier.Manifest, send courier.SendFunc, receive courier.ReceiveFunc) (courier.Result, error) {
	if !s.controller.Awake() {
		return courier.Result{}, ErrAsleep
	}
	s.mtx.Lock()
	if s.relaysLeft == 0 {
		s.mtx.Unlock()
		return courier.Result{}, ErrRelayBudget
	}
	s.mtx.Unlock()

	cfg := s.controller.Config()
	res := s.engine.PerformSync(send, receive, peer, courier.Constraints{
		MaxDuration:   cfg.WakeDuration,
		MinPriority:   cfg.MinRelayPriority,
		PrioritizeOwn: true,
		OwnOnly:       !cfg.RelayEnabled,
	})

	s.mtx.Lock()
	if s.relaysLeft > 0 {
		s.relaysLeft -= res.MessagesSent
		if s.relaysLeft < 0 {
			s.relaysLeft = 0
		}
	}
	s.mtx.Unlock()
	s.monitor.RecordLookup(res.Success)
	return res, nil
}

func (s *Session) onWake() {
	cfg := s.controller.Config()
	s.mtx.Lock()
	if cfg.MaxRelaysPerWake > 0 {
		s.relaysLeft = cfg.MaxRelaysPerWake
	} else {
		s.relaysLeft = -1
	}
	s.mtx.Unlock()
	s.monitor.Start(true)
	s.logger.Infof("Awake: relay budget %d.", cfg.MaxRelaysPerWake)
}

func (s *Session) onSleep() {
	s.monitor.Stop()
	s.flush()
	s.logger.Info("Asleep.")
}

func (s *Session) flush() {
	if s.snapshot == nil {
		return
	}
	if err := s.table.Save(s.snapshot); err != nil {
		s.logger.Errorf("Unable to save routing table: %+v", err)
	}
}
