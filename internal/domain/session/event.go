package session

import "time"

type EventType string

const (
	EventCreated       EventType = "created"
	EventAwaitingReady EventType = "awaiting_ready"
	EventReady         EventType = "ready"
	EventLobbyCreated  EventType = "lobby_created"
	EventRoundStarted  EventType = "round_started"
	EventRoundAdvanced EventType = "round_advanced"
	EventCompleted     EventType = "completed"
	EventCancelled     EventType = "cancelled"
	EventFailed        EventType = "failed"
)

// Event is one journal record of a session transition.
type Event struct {
	EventID      string
	SessionID    string
	Type         EventType
	Status       Status
	LobbyID      string
	RoundIndex   int
	Payload      map[string]any
	ErrorMessage string
	OccurredAt   time.Time
	TraceID      string
	SpanID       string
}
