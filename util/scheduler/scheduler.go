package scheduler

import (
	"math/rand"
	"sync"
	"time"
)

type action struct {
	typ int
	val int64
}

const (
	actionStop int = iota
	actionSkip
	actionReset
	actionSet
)

// Scheduler repeatedly runs a function on a jittered interval. All
// control methods funnel through an action channel so the timer is
// only ever touched by the owning goroutine (cancel-then-rearm, never
// a stale fire).
type Scheduler interface {
	Start(bool)
	Stop()
	Skip()
	Reset()
	Set(time.Duration)
	TimeLeft() time.Duration
}

type scheduler struct {
	function   func()
	interval   time.Duration
	randomness float32
	actions    chan action
	timer      *time.Timer
	cycleTime  int64
	startTime  int64
	mtx        sync.Mutex
	done       chan struct{}
}

func New(function func(), interval time.Duration, randomness float32) Scheduler {
	return &scheduler{
		function:   function,
		interval:   interval,
		randomness: randomness,
		actions:    make(chan action, 3),
	}
}

func (s *scheduler) Start(execute bool) {
	s.done = make(chan struct{})
	go s.target(execute)
}

func (s *scheduler) Stop() {
	s.actions <- action{typ: actionStop}
	<-s.done
}

func (s *scheduler) Skip()               { s.actions <- action{typ: actionSkip} }
func (s *scheduler) Reset()              { s.actions <- action{typ: actionReset} }
func (s *scheduler) Set(v time.Duration) { s.actions <- action{typ: actionSet, val: int64(v)} }

func (s *scheduler) TimeLeft() time.Duration {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return time.Duration(s.cycleTime) - time.Since(time.Unix(0, s.startTime))
}

func (s *scheduler) target(execute bool) {
	defer close(s.done)
	if execute {
		s.function()
	}
	s.timer = time.NewTimer(s.cycle(0))
	for {
		select {
		case <-s.timer.C:
			s.function()
			s.rearm(s.cycle(0))
		case a := <-s.actions:
			switch a.typ {
			case actionStop:
				s.drain()
				return
			case actionSkip:
				s.function()
				s.rearm(s.cycle(0))
			case actionReset:
				s.rearm(s.cycle(0))
			case actionSet:
				s.rearm(s.cycle(a.val))
			}
		}
	}
}

// cycle records the start of a new cycle and returns its length:
// the jittered interval, or an explicit override when v is non-zero.
func (s *scheduler) cycle(v int64) time.Duration {
	d := time.Duration(v)
	if v == 0 {
		d = AddJitter(s.interval, s.randomness)
	}
	s.mtx.Lock()
	s.startTime = time.Now().UnixNano()
	s.cycleTime = int64(d)
	s.mtx.Unlock()
	return d
}

func (s *scheduler) rearm(d time.Duration) {
	s.drain()
	s.timer.Reset(d)
}

func (s *scheduler) drain() {
	if !s.timer.Stop() {
		select {
		case <-s.timer.C:
		default:
		}
	}
}

// AddJitter lengthens a duration by a random fraction in [0, randomness).
func AddJitter(value time.Duration, randomness float32) time.Duration {
	if randomness <= 0 {
		return value
	}
	return value + time.Duration(rand.Intn(int(float32(value)*randomness)))
}
