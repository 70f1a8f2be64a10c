package session

import (
	"fmt"
	"time"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/participant"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/round"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/team"
)

type Status string

const (
	StatusScheduled     Status = "scheduled"
	StatusCollecting    Status = "collecting"
	StatusAwaitingReady Status = "awaiting_ready"
	StatusCreatingLobby Status = "creating_lobby"
	StatusInProgress    Status = "in_progress"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
	StatusFailed        Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

type Origin string

const (
	OriginPoll   Origin = "poll"
	OriginManual Origin = "manual"
)

// Session is one confirmed match. It is owned and mutated by the orchestrator only.
type Session struct {
	ID              string
	Origin          Origin
	SlotKey         string
	Participants    []participant.Participant
	TeamA           *team.Team
	TeamB           *team.Team
	SelfSelect      bool
	MatchSpec       string
	RoundsPerMap    int
	PlayersPerTeam  int
	Rounds          round.Sequence
	ExternalLobbyID string
	Status          Status
	StartAt         time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if s.Rounds.Len() == 0 {
		return fmt.Errorf("session %s has no rounds", s.ID)
	}
	for _, p := range s.Participants {
		if !p.Registered() {
			return fmt.Errorf("session %s: participant %s has no external game id", s.ID, p.ChannelID)
		}
	}
	return nil
}

func (s *Session) Transition(status Status, at time.Time) {
	s.Status = status
	s.UpdatedAt = at
}

// Snapshot returns a copy that shares no slices with the live session.
func (s *Session) Snapshot() Session {
	out := *s
	out.Participants = append([]participant.Participant(nil), s.Participants...)
	out.Rounds = round.Sequence{
		Rounds:  append([]string(nil), s.Rounds.Rounds...),
		Current: s.Rounds.Current,
	}
	if s.TeamA != nil {
		a := team.Team{Label: s.TeamA.Label, Members: append([]participant.Participant(nil), s.TeamA.Members...)}
		out.TeamA = &a
	}
	if s.TeamB != nil {
		b := team.Team{Label: s.TeamB.Label, Members: append([]participant.Participant(nil), s.TeamB.Members...)}
		out.TeamB = &b
	}
	return out
}
