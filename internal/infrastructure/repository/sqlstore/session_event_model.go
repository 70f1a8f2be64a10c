package sqlstore

import (
	"time"

	qb "github.com/riskibarqy/scrim-scheduler/internal/platform/querybuilder"
)

const sessionEventsTable = "session_events"

type sessionEventInsertModel struct {
	EventID      string    `db:"event_id"`
	SessionID    string    `db:"session_id"`
	EventType    string    `db:"event_type"`
	Status       string    `db:"status"`
	LobbyID      *string   `db:"lobby_id"`
	RoundIndex   int       `db:"round_index"`
	Payload      string    `db:"payload"`
	ErrorMessage *string   `db:"error_message"`
	OccurredAt   time.Time `db:"occurred_at"`
	TraceID      *string   `db:"trace_id"`
	SpanID       *string   `db:"span_id"`
}

type sessionEventRow struct {
	EventID      string    `db:"event_id"`
	SessionID    string    `db:"session_id"`
	EventType    string    `db:"event_type"`
	Status       string    `db:"status"`
	LobbyID      *string   `db:"lobby_id"`
	RoundIndex   int       `db:"round_index"`
	Payload      []byte    `db:"payload"`
	ErrorMessage *string   `db:"error_message"`
	OccurredAt   time.Time `db:"occurred_at"`
	TraceID      *string   `db:"trace_id"`
	SpanID       *string   `db:"span_id"`
}

var sessionEventColumns = mustColumns(sessionEventRow{})

func mustColumns(model any) []string {
	cols, err := qb.ColumnsOf(model)
	if err != nil {
		panic(err)
	}
	return cols
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
