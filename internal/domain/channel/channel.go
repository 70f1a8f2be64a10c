package channel

import (
	"context"
	"errors"
	"time"
)

var ErrUnavailable = errors.New("announcement channel unavailable")

// Message is a notice posted to the announcement channel. Rendering is left to
// the adapter.
type Message struct {
	Title    string
	Body     string
	Fields   []Field
	Mentions []string
}

type Field struct {
	Name  string
	Value string
}

// Reaction is one add or remove of a reaction symbol on a posted message.
type Reaction struct {
	MessageRef    string
	Symbol        string
	ParticipantID string
	Added         bool
	Bot           bool
}

// Channel is the announcement channel the orchestrator talks to.
type Channel interface {
	PostMessage(ctx context.Context, msg Message) (string, error)
	AddReaction(ctx context.Context, messageRef, symbol string) error
	// ObserveReactions streams reactions on messageRef in delivery order until ctx is done.
	ObserveReactions(ctx context.Context, messageRef string) (<-chan Reaction, error)
	CurrentReactors(ctx context.Context, messageRef, symbol string) ([]string, error)
}

type CalendarEvent struct {
	Name        string
	Description string
	StartAt     time.Time
	EndAt       time.Time
}

// EventScheduler manages scheduled events shown alongside the channel.
type EventScheduler interface {
	CreateEvent(ctx context.Context, event CalendarEvent) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
}
