package poll

import (
	"fmt"
	"time"

	"github.com/riskibarqy/scrim-scheduler/internal/platform/clock"
)

// NumberSymbols are the reaction symbols assigned to slots in order.
var NumberSymbols = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

type SlotOption struct {
	Key     string
	Label   string
	Symbol  string
	StartAt time.Time
}

// WeekdayOptions builds one slot per weekday, starting at the next occurrence of
// hour:minute UTC after now.
func WeekdayOptions(days []time.Weekday, now time.Time, hour, minute int) []SlotOption {
	out := make([]SlotOption, 0, len(days))
	for i, day := range days {
		if i >= len(NumberSymbols) {
			break
		}
		start := clock.Weekly{Weekday: day, Hour: hour, Minute: minute}.Next(now)
		out = append(out, SlotOption{
			Key:     lowerName(day),
			Label:   day.String(),
			Symbol:  NumberSymbols[i],
			StartAt: start,
		})
	}
	return out
}

func lowerName(day time.Weekday) string {
	name := []byte(day.String())
	if len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z' {
		name[0] += 'a' - 'A'
	}
	return string(name)
}

// Slot holds every piece of per-slot state: reactors, confirmation, the
// calendar event and the slot's timers.
type Slot struct {
	Key     string
	Label   string
	Symbol  string
	StartAt time.Time

	Confirmed       bool
	CalendarEventID string
	SessionID       string
	Epoch           uint64
	Timers          *clock.Set

	reactors []string
	index    map[string]struct{}
}

func newSlot(opt SlotOption, c clock.Clock) *Slot {
	return &Slot{
		Key:     opt.Key,
		Label:   opt.Label,
		Symbol:  opt.Symbol,
		StartAt: opt.StartAt,
		Timers:  clock.NewSet(c),
		index:   make(map[string]struct{}),
	}
}

// AddReactor returns false when the participant already reacted.
func (s *Slot) AddReactor(participantID string) bool {
	if _, ok := s.index[participantID]; ok {
		return false
	}
	s.index[participantID] = struct{}{}
	s.reactors = append(s.reactors, participantID)
	return true
}

// RemoveReactor returns false when the participant had not reacted.
func (s *Slot) RemoveReactor(participantID string) bool {
	if _, ok := s.index[participantID]; !ok {
		return false
	}
	delete(s.index, participantID)
	for i, id := range s.reactors {
		if id == participantID {
			s.reactors = append(s.reactors[:i], s.reactors[i+1:]...)
			break
		}
	}
	return true
}

func (s *Slot) Count() int {
	return len(s.reactors)
}

// Reactors returns reactor ids in the order they first reacted.
func (s *Slot) Reactors() []string {
	return append([]string(nil), s.reactors...)
}

// Confirm marks the slot confirmed and returns the epoch its timers must carry.
func (s *Slot) Confirm(sessionID string) uint64 {
	s.Confirmed = true
	s.SessionID = sessionID
	s.Epoch++
	return s.Epoch
}

// Release drops the slot's binding to sessionID once that session has ended.
// It reports false when the slot is bound to another session.
func (s *Slot) Release(sessionID string) bool {
	if sessionID == "" || s.SessionID != sessionID {
		return false
	}
	s.SessionID = ""
	return true
}

// Revert cancels the slot's timers and clears its confirmation. Timers scheduled
// before the call observe a stale epoch. The calendar event id is returned so the
// caller can delete it.
func (s *Slot) Revert(c clock.Clock) string {
	s.Timers.CancelAll()
	s.Timers = clock.NewSet(c)
	s.Confirmed = false
	s.SessionID = ""
	s.Epoch++
	eventID := s.CalendarEventID
	s.CalendarEventID = ""
	return eventID
}

// Poll is the single open interest poll.
type Poll struct {
	ID          string
	MessageRef  string
	Threshold   int
	CreatedAt   time.Time
	CancelledAt *time.Time
	Slots       []*Slot
}

func New(id string, createdAt time.Time, threshold int, options []SlotOption, c clock.Clock) (*Poll, error) {
	if id == "" {
		return nil, fmt.Errorf("poll id is required")
	}
	if threshold < 1 {
		return nil, fmt.Errorf("poll threshold must be >= 1")
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("poll needs at least one slot")
	}

	p := &Poll{ID: id, Threshold: threshold, CreatedAt: createdAt}
	seen := make(map[string]struct{}, len(options))
	for _, opt := range options {
		if _, dup := seen[opt.Symbol]; dup {
			return nil, fmt.Errorf("duplicate slot symbol %s", opt.Symbol)
		}
		seen[opt.Symbol] = struct{}{}
		p.Slots = append(p.Slots, newSlot(opt, c))
	}
	return p, nil
}

func (p *Poll) SlotBySymbol(symbol string) (*Slot, bool) {
	for _, s := range p.Slots {
		if s.Symbol == symbol {
			return s, true
		}
	}
	return nil, false
}

func (p *Poll) SlotByKey(key string) (*Slot, bool) {
	for _, s := range p.Slots {
		if s.Key == key {
			return s, true
		}
	}
	return nil, false
}

// Close cancels every slot timer. A closed poll ignores further reactions.
func (p *Poll) Close(at time.Time) {
	if p.CancelledAt != nil {
		return
	}
	for _, s := range p.Slots {
		s.Timers.CancelAll()
		s.Epoch++
	}
	p.CancelledAt = &at
}

func (p *Poll) Open() bool {
	return p.CancelledAt == nil
}
