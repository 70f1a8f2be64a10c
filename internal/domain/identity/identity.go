package identity

import (
	"context"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/participant"
)

// Registry maps a channel member to the external game id they registered.
type Registry interface {
	ResolveExternalID(ctx context.Context, channelID string) (string, bool, error)
}

// AffiliationDirectory returns a member's affiliation label, "" when none.
type AffiliationDirectory interface {
	AffiliationOf(ctx context.Context, channelID string) (string, error)
}

// RoleSource lists the role names a channel member holds.
type RoleSource interface {
	MemberRoles(ctx context.Context, channelID string) ([]string, error)
}

// Roster resolves channel ids into participants, preserving input order.
type Roster interface {
	Resolve(ctx context.Context, channelIDs []string) ([]participant.Participant, error)
}
