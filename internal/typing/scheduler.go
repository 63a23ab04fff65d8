package typing

import (
	"sync"
	"time"
)

// Timer is a pending scheduled call.
type Timer interface {
	// Stop prevents the call if it has not run yet and reports whether it did so.
	Stop() bool
}

// Scheduler arms timers and reads the clock.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

// LoopScheduler fires timers on the caller's execution context by handing the
// callback to Post instead of running it on the timer goroutine.
type LoopScheduler struct {
	Post func(func())
}

func (s LoopScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() { s.Post(f) })
}

func (LoopScheduler) Now() time.Time { return time.Now() }

// ManualScheduler is a Scheduler driven by Advance. Timers fire synchronously
// inside Advance, in deadline order.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{at: s.now.Add(d), f: f}
	s.timers = append(s.timers, t)
	return &manualHandle{s: s, t: t}
}

// Pending returns the number of armed timers.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, firing every timer that comes due.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var next *manualTimer
		for _, t := range s.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		next.fired = true
		s.now = next.at
		s.mu.Unlock()
		next.f()
	}
}

type manualHandle struct {
	s *ManualScheduler
	t *manualTimer
}

func (h *manualHandle) Stop() bool {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if h.t.stopped || h.t.fired {
		return false
	}
	h.t.stopped = true
	return true
}
