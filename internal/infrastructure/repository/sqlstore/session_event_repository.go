package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/session"
	qb "github.com/riskibarqy/scrim-scheduler/internal/platform/querybuilder"
)

// SessionEventRepository stores the session journal in postgres or sqlite.
type SessionEventRepository struct {
	db *sqlx.DB
}

func NewSessionEventRepository(db *sqlx.DB) *SessionEventRepository {
	return &SessionEventRepository{db: db}
}

func (r *SessionEventRepository) AppendEvent(ctx context.Context, event session.Event) error {
	sessionID := strings.TrimSpace(event.SessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	eventID := strings.TrimSpace(event.EventID)
	if eventID == "" {
		return fmt.Errorf("event id is required")
	}

	occurredAt := event.OccurredAt.UTC()
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	payloadJSON, err := marshalPayload(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal session event payload: %w", err)
	}

	model := sessionEventInsertModel{
		EventID:      eventID,
		SessionID:    sessionID,
		EventType:    string(event.Type),
		Status:       string(event.Status),
		LobbyID:      optionalString(event.LobbyID),
		RoundIndex:   event.RoundIndex,
		Payload:      payloadJSON,
		ErrorMessage: optionalString(event.ErrorMessage),
		OccurredAt:   occurredAt,
		TraceID:      optionalString(event.TraceID),
		SpanID:       optionalString(event.SpanID),
	}

	query, args, err := qb.InsertModel(sessionEventsTable, model, "ON CONFLICT (event_id) DO NOTHING")
	if err != nil {
		return fmt.Errorf("build insert session event query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("insert session event session_id=%s type=%s: %w", sessionID, event.Type, err)
	}
	return nil
}

func (r *SessionEventRepository) ListEvents(ctx context.Context, sessionID string) ([]session.Event, error) {
	query, args, err := qb.Select(sessionEventColumns...).
		From(sessionEventsTable).
		Where(qb.Eq("session_id", sessionID)).
		OrderBy("occurred_at ASC", "id ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list session events query: %w", err)
	}

	var rows []sessionEventRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list session events session_id=%s: %w", sessionID, err)
	}

	out := make([]session.Event, 0, len(rows))
	for _, row := range rows {
		payload, err := unmarshalPayload(row.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode payload of event %s: %w", row.EventID, err)
		}
		out = append(out, session.Event{
			EventID:      row.EventID,
			SessionID:    row.SessionID,
			Type:         session.EventType(row.EventType),
			Status:       session.Status(row.Status),
			LobbyID:      stringValue(row.LobbyID),
			RoundIndex:   row.RoundIndex,
			Payload:      payload,
			ErrorMessage: stringValue(row.ErrorMessage),
			OccurredAt:   row.OccurredAt.UTC(),
			TraceID:      stringValue(row.TraceID),
			SpanID:       stringValue(row.SpanID),
		})
	}
	return out, nil
}

func marshalPayload(payload map[string]any) (string, error) {
	if len(payload) == 0 {
		return "{}", nil
	}
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalPayload(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
