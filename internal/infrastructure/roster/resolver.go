package roster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/identity"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/participant"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/cache"
	"github.com/sourcegraph/conc/pool"
)

const defaultConcurrency = 8

// Resolver turns channel ids into participants from their roles. Role lookups are
// cached and run concurrently.
type Resolver struct {
	source      identity.RoleSource
	parser      RoleParser
	cache       *cache.Store[[]string]
	concurrency int
}

func NewResolver(source identity.RoleSource, parser RoleParser, ttl time.Duration, concurrency int) *Resolver {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	return &Resolver{
		source:      source,
		parser:      parser,
		cache:       cache.NewStore[[]string](ttl),
		concurrency: concurrency,
	}
}

func (r *Resolver) Resolve(ctx context.Context, channelIDs []string) ([]participant.Participant, error) {
	out := make([]participant.Participant, len(channelIDs))
	if len(channelIDs) == 0 {
		return out, nil
	}

	p := pool.New().WithContext(ctx).WithMaxGoroutines(r.concurrency).WithCancelOnError()
	for i, id := range channelIDs {
		p.Go(func(ctx context.Context) error {
			roles, err := r.roles(ctx, id)
			if err != nil {
				return fmt.Errorf("resolve member %s: %w", id, err)
			}
			out[i] = participant.Participant{
				ChannelID:      id,
				DisplayName:    id,
				ExternalGameID: r.parser.ExternalID(roles),
				Affiliation:    r.parser.Affiliation(roles),
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) ResolveExternalID(ctx context.Context, channelID string) (string, bool, error) {
	roles, err := r.roles(ctx, channelID)
	if err != nil {
		return "", false, err
	}
	gameID := r.parser.ExternalID(roles)
	return gameID, gameID != "", nil
}

func (r *Resolver) AffiliationOf(ctx context.Context, channelID string) (string, error) {
	roles, err := r.roles(ctx, channelID)
	if err != nil {
		return "", err
	}
	return r.parser.Affiliation(roles), nil
}

// Forget drops the cached roles of a member, e.g. after a role change.
func (r *Resolver) Forget(ctx context.Context, channelID string) {
	r.cache.Delete(ctx, rolesKey(channelID))
}

func (r *Resolver) roles(ctx context.Context, channelID string) ([]string, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channel id is required")
	}
	return r.cache.GetOrLoad(ctx, rolesKey(channelID), func(ctx context.Context) ([]string, error) {
		return r.source.MemberRoles(ctx, channelID)
	})
}

func rolesKey(channelID string) string {
	return "roles:" + channelID
}

// StaticDirectory is a RoleSource held in memory. Unknown members have no roles.
type StaticDirectory struct {
	mu    sync.RWMutex
	roles map[string][]string
}

func NewStaticDirectory(roles map[string][]string) *StaticDirectory {
	d := &StaticDirectory{roles: make(map[string][]string, len(roles))}
	for id, list := range roles {
		d.roles[id] = append([]string(nil), list...)
	}
	return d
}

func (d *StaticDirectory) Set(channelID string, roles ...string) {
	d.mu.Lock()
	d.roles[channelID] = append([]string(nil), roles...)
	d.mu.Unlock()
}

func (d *StaticDirectory) MemberRoles(_ context.Context, channelID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.roles[channelID]...), nil
}
