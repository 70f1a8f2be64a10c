package session

import "context"

// Repository stores the session journal.
type Repository interface {
	AppendEvent(ctx context.Context, event Event) error
	ListEvents(ctx context.Context, sessionID string) ([]Event, error)
}
