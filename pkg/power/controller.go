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
	"sync"
	"time"

	log "github.com/apex/log"
)

// Timer is a cancellable one-shot handle.
type Timer interface {
	Stop() bool
}

// TimerFactory arms a one-shot timer. Swappable so duty-cycle timing
// is testable without sleeping.
type TimerFactory func(d time.Duration, fn func()) Timer

type realTimer struct{ t *time.Timer }

func (r realTimer) Stop() bool { return r.t.Stop() }

func defaultTimerFactory(d time.Duration, fn func()) Timer {
	return realTimer{t: time.AfterFunc(d, fn)}
}

// Controller gates when routing maintenance, scanning and sync may
// run. It owns a single awake/asleep flag, the active profile and the
// timers that drive the duty cycle. Wake and sleep callbacks fire only
// on actual edge transitions, each isolated from sibling failures.
type Controller interface {
	Start()
	Stop()
	Profile() Profile
	Config() ProfileConfig
	Awake() bool
	SetProfile(p Profile, reason Reason)
	ForceWake(reason Reason)
	SetAutoProfile(enabled bool)
	UpdateBattery(bs BatteryStatus)
	Battery() BatteryStatus
	TimeRemaining() (time.Duration, bool)
	Transitions() []Transition
	OnWake(fn func())
	OnSleep(fn func())
	OnProfileChange(fn func(Transition))
	PrepareForShutdown()
}

type controller struct {
	constants *Constants
	configs   map[Profile]ProfileConfig
	logger    *log.Entry
	newTimer  TimerFactory

	mtx         sync.Mutex
	profile     Profile
	awake       bool
	auto        bool
	started     bool
	battery     BatteryStatus
	hasBattery  bool
	transitions []Transition
	wakeSubs    []func()
	sleepSubs   []func()
	profSubs    []func(Transition)
	wakeTimer   Timer
	sleepTimer  Timer
	// gen invalidates timers across schedule restarts: a stale timer
	// firing after cancel-then-rearm is a no-op.
	gen int
}

func NewController(cs *Constants) Controller {
	return &controller{
		constants: cs,
		configs:   ProfileConfigs(),
		logger:    log.WithField("module", "power"),
		newTimer:  defaultTimerFactory,
		profile:   ProfileFull,
	}
}

func (c *controller) Start() {
	c.mtx.Lock()
	if c.started {
		c.mtx.Unlock()
		return
	}
	c.started = true
	edges := c.restartScheduleLocked()
	c.mtx.Unlock()
	c.fire(edges)
	c.logger.Infof("Controller started in %s.", c.Profile())
}

func (c *controller) Stop() {
	c.mtx.Lock()
	c.started = false
	c.gen++
	c.cancelTimersLocked()
	c.mtx.Unlock()
	c.logger.Info("Controller stopped.")
}

func (c *controller) Profile() Profile {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.profile
}

func (c *controller) Config() ProfileConfig {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.configs[c.profile]
}

func (c *controller) Awake() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.awake
}

// SetProfile is a no-op when the profile is unchanged. Otherwise it
// records the transition, notifies listeners and restarts the
// scheduler under the new profile.
func (c *controller) SetProfile(p Profile, reason Reason) {
	c.mtx.Lock()
	if p == c.profile {
		c.mtx.Unlock()
		return
	}
	tr := Transition{From: c.profile, To: p, Reason: reason, At: time.Now()}
	c.transitions = append(c.transitions, tr)
	c.profile = p
	profSubs := append([]func(Transition){}, c.profSubs...)
	var edges []func()
	if c.started {
		edges = c.restartScheduleLocked()
	}
	c.mtx.Unlock()

	c.logger.Infof("Profile %s -> %s (%s).", tr.From, tr.To, tr.Reason)
	for _, sub := range profSubs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Errorf("Profile listener panic: %+v", r)
				}
			}()
			sub(tr)
		}()
	}
	c.fire(edges)
}

// ForceWake transitions to awake immediately if asleep; it never
// touches the underlying schedule.
func (c *controller) ForceWake(reason Reason) {
	c.mtx.Lock()
	edges := c.wakeEdgeLocked()
	c.mtx.Unlock()
	if edges == nil {
		return
	}
	c.logger.Infof("Forced wake (%s).", reason)
	c.fire(edges)
}

func (c *controller) SetAutoProfile(enabled bool) {
	c.mtx.Lock()
	c.auto = enabled
	c.mtx.Unlock()
}

// UpdateBattery records the host-supplied status and, when automatic
// selection is enabled and the device is not charging, switches to the
// lowest-power profile whose threshold the level has crossed. Charging
// always suppresses auto-switching.
func (c *controller) UpdateBattery(bs BatteryStatus) {
	c.mtx.Lock()
	c.battery = bs
	c.hasBattery = true
	auto := c.auto
	c.mtx.Unlock()
	if !auto || bs.Charging {
		return
	}
	c.SetProfile(c.profileForLevel(bs.Level), ReasonBattery)
}

func (c *controller) Battery() BatteryStatus {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.battery
}

// TimeRemaining estimates runtime under the active profile. The second
// return is false when the estimate is unbounded (charging) or no
// battery status has been seen.
func (c *controller) TimeRemaining() (time.Duration, bool) {
	c.mtx.Lock()
	bs, known := c.battery, c.hasBattery
	profile := c.profile
	c.mtx.Unlock()
	if !known || bs.Charging {
		return 0, false
	}
	draw := c.constants.CurrentDrawMA[profile]
	if draw <= 0 {
		return 0, false
	}
	remainingMAH := c.constants.BatteryCapacityMAH * float64(bs.Level) / 100
	hours := remainingMAH / draw
	return time.Duration(hours * float64(time.Hour)), true
}

func (c *controller) Transitions() []Transition {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return append([]Transition{}, c.transitions...)
}

func (c *controller) OnWake(fn func()) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.wakeSubs = append(c.wakeSubs, fn)
}

func (c *controller) OnSleep(fn func()) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.sleepSubs = append(c.sleepSubs, fn)
}

func (c *controller) OnProfileChange(fn func(Transition)) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.profSubs = append(c.profSubs, fn)
}

// PrepareForShutdown invokes every sleep callback once, regardless of
// the current awake state, so dependents can flush before power loss.
func (c *controller) PrepareForShutdown() {
	c.mtx.Lock()
	subs := append([]func(){}, c.sleepSubs...)
	c.mtx.Unlock()
	c.logger.Info("Preparing for shutdown.")
	c.fire(subs)
}

func (c *controller) profileForLevel(level int) Profile {
	cs := c.constants
	switch {
	case level <= cs.DeadPhoneThreshold:
		return ProfileDeadPhone
	case level <= cs.SurvivalThreshold:
		return ProfileSurvival
	case level <= cs.BalancedThreshold:
		return ProfileBalanced
	default:
		return ProfileFull
	}
}

// restartScheduleLocked cancels any pending timers and arms the
// schedule of the active profile. It returns the edge callbacks the
// caller must fire after unlocking.
func (c *controller) restartScheduleLocked() []func() {
	c.gen++
	g := c.gen
	c.cancelTimersLocked()
	cfg := c.configs[c.profile]
	switch {
	case cfg.OneShot:
		// Wake now, sleep after WakeDuration, never wake again.
		edges := c.wakeEdgeLocked()
		c.sleepTimer = c.newTimer(cfg.WakeDuration, func() { c.timerSleep(g) })
		return edges
	case cfg.WakeInterval == 0:
		// Permanently awake, no timers armed.
		return c.wakeEdgeLocked()
	default:
		edges := c.sleepEdgeLocked()
		c.wakeTimer = c.newTimer(cfg.WakeInterval, func() { c.timerWake(g) })
		return edges
	}
}

func (c *controller) timerWake(g int) {
	c.mtx.Lock()
	if g != c.gen || !c.started {
		c.mtx.Unlock()
		return
	}
	edges := c.wakeEdgeLocked()
	cfg := c.configs[c.profile]
	c.sleepTimer = c.newTimer(cfg.WakeDuration, func() { c.timerSleep(g) })
	// The next wake is measured from this wake instant, giving a duty
	// cycle of WakeDuration/WakeInterval.
	c.wakeTimer = c.newTimer(cfg.WakeInterval, func() { c.timerWake(g) })
	c.mtx.Unlock()
	c.fire(edges)
}

func (c *controller) timerSleep(g int) {
	c.mtx.Lock()
	if g != c.gen || !c.started {
		c.mtx.Unlock()
		return
	}
	edges := c.sleepEdgeLocked()
	c.mtx.Unlock()
	c.fire(edges)
}

// wakeEdgeLocked flips to awake and returns the callbacks to fire, or
// nothing when already awake.
func (c *controller) wakeEdgeLocked() []func() {
	if c.awake {
		return nil
	}
	c.awake = true
	return append([]func(){}, c.wakeSubs...)
}

func (c *controller) sleepEdgeLocked() []func() {
	if !c.awake {
		return nil
	}
	c.awake = false
	return append([]func(){}, c.sleepSubs...)
}

func (c *controller) cancelTimersLocked() {
	if c.wakeTimer != nil {
		c.wakeTimer.Stop()
		c.wakeTimer = nil
	}
	if c.sleepTimer != nil {
		c.sleepTimer.Stop()
		c.sleepTimer = nil
	}
}

func (c *controller) fire(fns []func()) {
	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Errorf("Callback panic: %+v", r)
				}
			}()
			fn()
		}()
	}
}
