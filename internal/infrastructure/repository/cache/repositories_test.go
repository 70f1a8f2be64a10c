package cache

import (
	"context"
	"testing"
	"time"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/session"
	sessionmock "github.com/riskibarqy/scrim-scheduler/internal/mocks/domain/session"
	basecache "github.com/riskibarqy/scrim-scheduler/internal/platform/cache"
	"github.com/stretchr/testify/mock"
)

func TestSessionEventRepository_CachesUntilAppend(t *testing.T) {
	ctx := context.Background()
	next := sessionmock.NewRepository(t)
	repo := NewSessionEventRepository(next, basecache.NewStore[[]session.Event](time.Minute))

	first := []session.Event{{EventID: "e1", SessionID: "s1", Type: session.EventCreated}}
	second := append(first, session.Event{EventID: "e2", SessionID: "s1", Type: session.EventReady})

	next.On("ListEvents", mock.Anything, "s1").Return(first, nil).Once()
	for range 3 {
		got, err := repo.ListEvents(ctx, "s1")
		if err != nil || len(got) != 1 {
			t.Fatalf("list events: %v %v", got, err)
		}
	}

	next.On("AppendEvent", mock.Anything, second[1]).Return(nil).Once()
	if err := repo.AppendEvent(ctx, second[1]); err != nil {
		t.Fatalf("append: %v", err)
	}

	next.On("ListEvents", mock.Anything, "s1").Return(second, nil).Once()
	got, err := repo.ListEvents(ctx, "s1")
	if err != nil || len(got) != 2 {
		t.Fatalf("append must invalidate the cached list, got %v %v", got, err)
	}
}

func TestSessionEventRepository_FailedAppendKeepsCache(t *testing.T) {
	ctx := context.Background()
	next := sessionmock.NewRepository(t)
	repo := NewSessionEventRepository(next, basecache.NewStore[[]session.Event](time.Minute))

	next.On("ListEvents", mock.Anything, "s1").Return([]session.Event{{EventID: "e1", SessionID: "s1"}}, nil).Once()
	if _, err := repo.ListEvents(ctx, "s1"); err != nil {
		t.Fatalf("list: %v", err)
	}

	next.On("AppendEvent", mock.Anything, mock.Anything).Return(context.DeadlineExceeded).Once()
	if err := repo.AppendEvent(ctx, session.Event{EventID: "e2", SessionID: "s1"}); err == nil {
		t.Fatalf("expected append error")
	}
	if got, _ := repo.ListEvents(ctx, "s1"); len(got) != 1 {
		t.Fatalf("cached list must survive a failed append, got %v", got)
	}
}
