package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/session"
)

type SessionEventRepository struct {
	mu      sync.RWMutex
	bySess  map[string][]session.Event
	seenIDs map[string]struct{}
}

func NewSessionEventRepository() *SessionEventRepository {
	return &SessionEventRepository{
		bySess:  make(map[string][]session.Event),
		seenIDs: make(map[string]struct{}),
	}
}

// AppendEvent ignores an event whose id was already stored.
func (r *SessionEventRepository) AppendEvent(_ context.Context, event session.Event) error {
	sessionID := strings.TrimSpace(event.SessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(event.EventID) == "" {
		return fmt.Errorf("event id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seenIDs[event.EventID]; ok {
		return nil
	}
	r.seenIDs[event.EventID] = struct{}{}
	event.Payload = copyPayload(event.Payload)
	r.bySess[sessionID] = append(r.bySess[sessionID], event)
	return nil
}

func (r *SessionEventRepository) ListEvents(_ context.Context, sessionID string) ([]session.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := r.bySess[sessionID]
	out := make([]session.Event, 0, len(items))
	for _, item := range items {
		item.Payload = copyPayload(item.Payload)
		out = append(out, item)
	}
	return out, nil
}

func copyPayload(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
