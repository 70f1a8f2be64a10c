package team

import (
	"sort"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/participant"
)

const MixedLabel = "Mixed"

// Team is a labelled group of participants assembled for one match.
type Team struct {
	Label   string
	Members []participant.Participant
}

func (t Team) Size() int {
	return len(t.Members)
}

type Kind string

const (
	KindAffiliated        Kind = "affiliated"
	KindAffiliatedVsMixed Kind = "affiliated_vs_mixed"
	KindMixed             Kind = "mixed"
)

// Formation is the outcome of FormTeams. TeamA and TeamB never share a member.
type Formation struct {
	TeamA Team
	TeamB Team
	Kind  Kind
}

func (f Formation) Participants() []participant.Participant {
	out := make([]participant.Participant, 0, f.TeamA.Size()+f.TeamB.Size())
	out = append(out, f.TeamA.Members...)
	out = append(out, f.TeamB.Members...)
	return out
}

// AffiliationFunc returns the affiliation label of a participant, or "" when it has none.
type AffiliationFunc func(participant.Participant) string

// NoAffiliation treats every participant as unaffiliated.
func NoAffiliation(participant.Participant) string { return "" }

// ByAffiliationField reads the label resolved onto the participant record.
func ByAffiliationField(p participant.Participant) string { return p.Affiliation }

type group struct {
	label   string
	members []participant.Participant
}

// FormTeams splits participants into two teams of at least minPerTeam members.
// Participants without an external game id and repeated channel ids are skipped.
// The result depends only on input order.
func FormTeams(participants []participant.Participant, affiliationOf AffiliationFunc, minPerTeam int) (Formation, bool) {
	if minPerTeam < 1 {
		minPerTeam = 1
	}
	if affiliationOf == nil {
		affiliationOf = NoAffiliation
	}

	pool, _ := participant.SplitRegistered(participants)
	if len(pool) < 2*minPerTeam {
		return Formation{}, false
	}

	groups := make([]*group, 0)
	byLabel := make(map[string]*group)
	for _, p := range pool {
		label := affiliationOf(p)
		if label == "" {
			continue
		}
		g, ok := byLabel[label]
		if !ok {
			g = &group{label: label}
			byLabel[label] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, p)
	}

	eligible := make([]*group, 0, len(groups))
	for _, g := range groups {
		if len(g.members) >= minPerTeam {
			eligible = append(eligible, g)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return len(eligible[i].members) > len(eligible[j].members)
	})

	switch {
	case len(eligible) >= 2:
		return Formation{
			TeamA: Team{Label: eligible[0].label, Members: clone(eligible[0].members)},
			TeamB: Team{Label: eligible[1].label, Members: clone(eligible[1].members)},
			Kind:  KindAffiliated,
		}, true

	case len(eligible) == 1:
		main := eligible[0]
		rest := make([]participant.Participant, 0, len(pool)-len(main.members))
		for _, p := range pool {
			if affiliationOf(p) != main.label {
				rest = append(rest, p)
			}
		}
		if len(rest) < minPerTeam {
			return Formation{}, false
		}
		return Formation{
			TeamA: Team{Label: main.label, Members: clone(main.members)},
			TeamB: Team{Label: MixedLabel, Members: rest},
			Kind:  KindAffiliatedVsMixed,
		}, true

	default:
		half := len(pool) / 2
		return Formation{
			TeamA: Team{Label: MixedLabel, Members: clone(pool[:half])},
			TeamB: Team{Label: MixedLabel, Members: clone(pool[half:])},
			Kind:  KindMixed,
		}, true
	}
}

// SplitEven fills two mixed teams of at most perTeam members each, in input order.
// Registered participants beyond 2*perTeam are left out.
func SplitEven(participants []participant.Participant, perTeam int) (Formation, bool) {
	if perTeam < 1 {
		perTeam = 1
	}
	pool, _ := participant.SplitRegistered(participants)
	if len(pool) < 2 {
		return Formation{}, false
	}
	if len(pool) > 2*perTeam {
		pool = pool[:2*perTeam]
	}
	half := len(pool) / 2
	return Formation{
		TeamA: Team{Label: MixedLabel, Members: clone(pool[:half])},
		TeamB: Team{Label: MixedLabel, Members: clone(pool[half:])},
		Kind:  KindMixed,
	}, true
}

func clone(items []participant.Participant) []participant.Participant {
	return append([]participant.Participant(nil), items...)
}
