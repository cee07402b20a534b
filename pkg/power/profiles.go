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

package power

import (
	"time"

	courier "github.com/opencourier/meshsync/pkg/courier"
)

type Profile int

const (
	ProfileFull Profile = iota
	ProfileBalanced
	ProfileSurvival
	ProfileDeadPhone
)

func (p Profile) String() string {
	switch p {
	case ProfileFull:
		return "FULL"
	case ProfileBalanced:
		return "BALANCED"
	case ProfileSurvival:
		return "SURVIVAL"
	case ProfileDeadPhone:
		return "DEAD_PHONE"
	default:
		return "UNKNOWN"
	}
}

// ProfileConfig is the immutable parameter set of one profile. A
// WakeInterval of zero means permanently awake; OneShot means wake
// once, sleep after WakeDuration, and never wake again without an
// external restart.
type ProfileConfig struct {
	WakeInterval     time.Duration
	WakeDuration     time.Duration
	ScanDuration     time.Duration
	RelayEnabled     bool
	SyncOnConnect    bool
	MinRelayPriority courier.Priority
	MaxRelaysPerWake int // 0 = unlimited
	OneShot          bool
}

// ProfileConfigs returns the fixed profile table.
func ProfileConfigs() map[Profile]ProfileConfig {
	return map[Profile]ProfileConfig{
		ProfileFull: {
			WakeInterval:     0,
			WakeDuration:     0,
			ScanDuration:     30 * time.Second,
			RelayEnabled:     true,
			SyncOnConnect:    true,
			MinRelayPriority: courier.PriorityLow,
			MaxRelaysPerWake: 0,
		},
		ProfileBalanced: {
			WakeInterval:     60 * time.Second,
			WakeDuration:     30 * time.Second,
			ScanDuration:     10 * time.Second,
			RelayEnabled:     true,
			SyncOnConnect:    true,
			MinRelayPriority: courier.PriorityLow,
			MaxRelaysPerWake: 100,
		},
		ProfileSurvival: {
			WakeInterval:     300 * time.Second,
			WakeDuration:     15 * time.Second,
			ScanDuration:     5 * time.Second,
			RelayEnabled:     false,
			SyncOnConnect:    true,
			MinRelayPriority: courier.PriorityHigh,
			MaxRelaysPerWake: 10,
		},
		// Last opportunity: exploit whatever charge remains.
		ProfileDeadPhone: {
			WakeInterval:     0,
			WakeDuration:     600 * time.Second,
			ScanDuration:     10 * time.Second,
			RelayEnabled:     true,
			SyncOnConnect:    true,
			MinRelayPriority: courier.PriorityLow,
			MaxRelaysPerWake: 0,
			OneShot:          true,
		},
	}
}

// Reason tags why a profile transition happened.
type Reason string

const (
	ReasonManual    Reason = "manual"
	ReasonAuto      Reason = "auto"
	ReasonBattery   Reason = "battery"
	ReasonEmergency Reason = "emergency"
)

type Transition struct {
	From   Profile
	To     Profile
	Reason Reason
	At     time.Time
}

// BatteryStatus is supplied by the host platform, never computed here.
type BatteryStatus struct {
	Level         int // 0-100
	Charging      bool
	TimeRemaining time.Duration
	Timestamp     time.Time
}

type Constants struct {
	// Auto-selection thresholds, inclusive, checked lowest first.
	DeadPhoneThreshold int
	SurvivalThreshold  int
	BalancedThreshold  int
	// Assumed cell capacity and per-profile draw for the
	// time-remaining estimate.
	BatteryCapacityMAH float64
	CurrentDrawMA      map[Profile]float64
}

func GetDefaultConstants() *Constants {
	return &Constants{
		DeadPhoneThreshold: 5,
		SurvivalThreshold:  20,
		BalancedThreshold:  50,
		BatteryCapacityMAH: 3000,
		CurrentDrawMA: map[Profile]float64{
			ProfileFull:      120,
			ProfileBalanced:  45,
			ProfileSurvival:  8,
			ProfileDeadPhone: 150,
		},
	}
}
