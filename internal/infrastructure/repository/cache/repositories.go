package cache

import (
	"context"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/session"
	basecache "github.com/riskibarqy/scrim-scheduler/internal/platform/cache"
)

// SessionEventRepository caches journal reads per session. Appends go to the
// underlying store first and then drop the session's cached list.
type SessionEventRepository struct {
	next  session.Repository
	cache *basecache.Store[[]session.Event]
}

func NewSessionEventRepository(next session.Repository, cache *basecache.Store[[]session.Event]) *SessionEventRepository {
	return &SessionEventRepository{next: next, cache: cache}
}

func (r *SessionEventRepository) AppendEvent(ctx context.Context, event session.Event) error {
	if err := r.next.AppendEvent(ctx, event); err != nil {
		return err
	}
	r.cache.Delete(ctx, eventsKey(event.SessionID))
	return nil
}

func (r *SessionEventRepository) ListEvents(ctx context.Context, sessionID string) ([]session.Event, error) {
	items, err := r.cache.GetOrLoad(ctx, eventsKey(sessionID), func(ctx context.Context) ([]session.Event, error) {
		items, err := r.next.ListEvents(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return append([]session.Event(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}
	return append([]session.Event(nil), items...), nil
}

func eventsKey(sessionID string) string {
	return "session-events:" + sessionID
}
