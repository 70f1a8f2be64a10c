package roster

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	identitymock "github.com/riskibarqy/scrim-scheduler/internal/mocks/domain/identity"
	"github.com/stretchr/testify/mock"
)

var testParser = RoleParser{
	Labels:     []string{"A-Team", "B-Team", "C-Team"},
	MainSuffix: "-Main",
	IDPrefix:   "id-",
}

func TestRoleParser_Affiliation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		roles []string
		want  string
	}{
		{name: "none", roles: []string{"Member"}, want: ""},
		{name: "plain label", roles: []string{"B-Team"}, want: "B-Team"},
		{name: "first configured label wins", roles: []string{"C-Team", "A-Team"}, want: "A-Team"},
		{name: "main beats plain", roles: []string{"A-Team", "C-Team-Main"}, want: "C-Team"},
		{name: "unknown main ignored", roles: []string{"X-Main", "B-Team"}, want: "B-Team"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := testParser.Affiliation(tc.roles); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRoleParser_ExternalID(t *testing.T) {
	t.Parallel()

	if got := testParser.ExternalID([]string{"id-abc", "A-Team", "id-4242"}); got != "4242" {
		t.Fatalf("expected 4242, got %q", got)
	}
	if got := testParser.ExternalID([]string{"id-", "Member"}); got != "" {
		t.Fatalf("expected no id, got %q", got)
	}
}

type countingSource struct {
	calls atomic.Int32
	roles map[string][]string
}

func (s *countingSource) MemberRoles(_ context.Context, id string) ([]string, error) {
	s.calls.Add(1)
	return s.roles[id], nil
}

func TestResolver_ResolvePreservesOrderAndCaches(t *testing.T) {
	t.Parallel()

	source := &countingSource{roles: map[string][]string{
		"u1": {"A-Team", "id-101"},
		"u2": {"id-102"},
		"u3": {"B-Team-Main"},
	}}
	r := NewResolver(source, testParser, time.Minute, 2)

	got, err := r.Resolve(context.Background(), []string{"u3", "u1", "u2"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 3 || got[0].ChannelID != "u3" || got[1].ChannelID != "u1" || got[2].ChannelID != "u2" {
		t.Fatalf("order not preserved: %+v", got)
	}
	if got[0].Registered() || got[0].Affiliation != "B-Team" {
		t.Fatalf("unexpected u3: %+v", got[0])
	}
	if got[1].ExternalGameID != "101" || got[1].Affiliation != "A-Team" {
		t.Fatalf("unexpected u1: %+v", got[1])
	}
	if got[2].ExternalGameID != "102" || got[2].Affiliation != "" {
		t.Fatalf("unexpected u2: %+v", got[2])
	}

	if _, err := r.Resolve(context.Background(), []string{"u1", "u2"}); err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if calls := source.calls.Load(); calls != 3 {
		t.Fatalf("expected cached role lookups, got %d calls", calls)
	}

	r.Forget(context.Background(), "u1")
	gameID, ok, err := r.ResolveExternalID(context.Background(), "u1")
	if err != nil || !ok || gameID != "101" {
		t.Fatalf("unexpected external id %q ok=%v err=%v", gameID, ok, err)
	}
	if calls := source.calls.Load(); calls != 4 {
		t.Fatalf("expected a fresh lookup after Forget, got %d calls", calls)
	}
}

func TestResolver_PropagatesSourceError(t *testing.T) {
	t.Parallel()

	errDown := errors.New("directory down")
	source := identitymock.NewRoleSource(t)
	source.On("MemberRoles", mock.Anything, mock.AnythingOfType("string")).Return(nil, errDown)
	r := NewResolver(source, testParser, time.Minute, 1)

	if _, err := r.Resolve(context.Background(), []string{"u1", "u2"}); !errors.Is(err, errDown) {
		t.Fatalf("expected directory error, got %v", err)
	}
}

func TestStaticDirectory(t *testing.T) {
	t.Parallel()

	d := NewStaticDirectory(map[string][]string{"u1": {"A-Team"}})
	d.Set("u2", "id-7")
	r := NewResolver(d, testParser, 0, 0)

	aff, err := r.AffiliationOf(context.Background(), "u1")
	if err != nil || aff != "A-Team" {
		t.Fatalf("unexpected affiliation %q err=%v", aff, err)
	}
	if _, ok, _ := r.ResolveExternalID(context.Background(), "u9"); ok {
		t.Fatalf("unknown member must not be registered")
	}
}
