package clock

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekly describes a wall-clock instant that recurs once per week, in UTC.
type Weekly struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

// Next returns the first occurrence strictly after t.
func (w Weekly) Next(t time.Time) time.Time {
	t = t.UTC()
	candidate := time.Date(t.Year(), t.Month(), t.Day(), w.Hour, w.Minute, 0, 0, time.UTC)
	days := (int(w.Weekday) - int(t.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, days)
	if !candidate.After(t) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// RunWeekly invokes fn at every occurrence of w until ctx is cancelled.
func RunWeekly(ctx context.Context, c Clock, w Weekly, fn func(context.Context)) {
	if c == nil {
		c = Real{}
	}
	for {
		next := w.Next(c.Now())
		fired := make(chan struct{})
		timer := c.AfterFunc(next.Sub(c.Now()), func() { close(fired) })

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-fired:
		}
		fn(ctx)
	}
}

func ParseWeekday(raw string) (time.Weekday, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	for day := time.Sunday; day <= time.Saturday; day++ {
		name := strings.ToLower(day.String())
		if value == name || value == name[:3] {
			return day, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", raw)
}

// ParseTimeOfDay parses "HH:MM" in 24h notation.
func ParseTimeOfDay(raw string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q, expected HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hour, minute, nil
}
