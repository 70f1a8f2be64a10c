package clock

import (
	"sort"
	"sync"
	"time"
)

// Set groups the named timers owned by one entity so they can be cancelled together.
// Once CancelAll has run, no callback of the set fires and new schedules are refused.
type Set struct {
	mu        sync.Mutex
	clock     Clock
	timers    map[string]*setEntry
	cancelled bool
}

type setEntry struct {
	timer Timer
	live  bool
}

func NewSet(c Clock) *Set {
	if c == nil {
		c = Real{}
	}
	return &Set{
		clock:  c,
		timers: make(map[string]*setEntry),
	}
}

// Schedule arranges for fn to run at the given instant, replacing any timer already
// registered under name. It returns false when the set has been cancelled.
func (s *Set) Schedule(name string, at time.Time, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return false
	}
	if prev, ok := s.timers[name]; ok {
		prev.live = false
		prev.timer.Stop()
	}

	entry := &setEntry{live: true}
	entry.timer = s.clock.AfterFunc(at.Sub(s.clock.Now()), func() {
		s.mu.Lock()
		if s.cancelled || !entry.live {
			s.mu.Unlock()
			return
		}
		entry.live = false
		delete(s.timers, name)
		s.mu.Unlock()

		fn()
	})
	s.timers[name] = entry
	return true
}

func (s *Set) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.timers[name]
	if !ok {
		return false
	}
	entry.live = false
	entry.timer.Stop()
	delete(s.timers, name)
	return true
}

func (s *Set) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelled = true
	for name, entry := range s.timers {
		entry.live = false
		entry.timer.Stop()
		delete(s.timers, name)
	}
}

// Pending lists the names of timers that have not fired or been cancelled.
func (s *Set) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.timers))
	for name := range s.timers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
