package httpapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/participant"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/session"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/team"
	"github.com/riskibarqy/scrim-scheduler/internal/usecase"
)

type reactionRequest struct {
	MessageRef    string `json:"message_ref" validate:"required"`
	Symbol        string `json:"symbol" validate:"required"`
	ParticipantID string `json:"participant_id" validate:"required"`
	Added         bool   `json:"added"`
	Bot           bool   `json:"bot"`
}

type createSessionRequest struct {
	MatchSpec      string `json:"match_spec" validate:"required,max=64"`
	RoundsPerMap   int    `json:"rounds_per_map" validate:"min=1,max=5"`
	PlayersPerTeam int    `json:"players_per_team" validate:"min=1,max=6"`
	SelfSelect     bool   `json:"self_select"`
}

type lobbyCallbackRequest struct {
	LobbyID lobbyID `json:"lobby_id" validate:"required"`
}

// lobbyID accepts the id as a JSON string or number.
type lobbyID string

func (l *lobbyID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null" || raw == "":
		*l = ""
		return nil
	case strings.HasPrefix(raw, `"`):
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("decode lobby id: %w", err)
		}
		*l = lobbyID(strings.TrimSpace(unquoted))
		return nil
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return fmt.Errorf("decode lobby id %s: %w", raw, err)
	}
	*l = lobbyID(raw)
	return nil
}

type pollDTO struct {
	ID         string        `json:"id"`
	MessageRef string        `json:"message_ref"`
	Threshold  int           `json:"threshold"`
	CreatedAt  string        `json:"created_at"`
	Slots      []pollSlotDTO `json:"slots"`
}

type pollSlotDTO struct {
	Key       string   `json:"key"`
	Label     string   `json:"label"`
	Symbol    string   `json:"symbol"`
	StartAt   string   `json:"start_at"`
	Reactors  int      `json:"reactors"`
	Confirmed bool     `json:"confirmed"`
	SessionID string   `json:"session_id,omitempty"`
	Timers    []string `json:"timers"`
}

type participantDTO struct {
	ChannelID      string `json:"channel_id"`
	DisplayName    string `json:"display_name,omitempty"`
	ExternalGameID string `json:"external_game_id"`
	Affiliation    string `json:"affiliation,omitempty"`
}

type teamDTO struct {
	Label   string           `json:"label"`
	Members []participantDTO `json:"members"`
}

type sessionDTO struct {
	ID             string           `json:"id"`
	Origin         string           `json:"origin"`
	SlotKey        string           `json:"slot_key,omitempty"`
	Status         string           `json:"status"`
	MatchSpec      string           `json:"match_spec"`
	RoundsPerMap   int              `json:"rounds_per_map"`
	PlayersPerTeam int              `json:"players_per_team,omitempty"`
	SelfSelect     bool             `json:"self_select"`
	LobbyID        string           `json:"lobby_id,omitempty"`
	Rounds         []string         `json:"rounds"`
	CurrentRound   int              `json:"current_round"`
	CurrentMap     string           `json:"current_map,omitempty"`
	Participants   []participantDTO `json:"participants"`
	TeamA          *teamDTO         `json:"team_a,omitempty"`
	TeamB          *teamDTO         `json:"team_b,omitempty"`
	StartAt        string           `json:"start_at,omitempty"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
}

type sessionEventDTO struct {
	EventID      string         `json:"event_id"`
	SessionID    string         `json:"session_id"`
	Type         string         `json:"type"`
	Status       string         `json:"status"`
	LobbyID      string         `json:"lobby_id,omitempty"`
	RoundIndex   int            `json:"round_index"`
	Payload      map[string]any `json:"payload,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	OccurredAt   string         `json:"occurred_at"`
	TraceID      string         `json:"trace_id,omitempty"`
}

func pollToDTO(v usecase.PollView) pollDTO {
	out := pollDTO{
		ID:         v.ID,
		MessageRef: v.MessageRef,
		Threshold:  v.Threshold,
		CreatedAt:  formatTime(v.CreatedAt),
		Slots:      make([]pollSlotDTO, 0, len(v.Slots)),
	}
	for _, slot := range v.Slots {
		timers := slot.Timers
		if timers == nil {
			timers = []string{}
		}
		out.Slots = append(out.Slots, pollSlotDTO{
			Key:       slot.Key,
			Label:     slot.Label,
			Symbol:    slot.Symbol,
			StartAt:   formatTime(slot.StartAt),
			Reactors:  slot.Reactors,
			Confirmed: slot.Confirmed,
			SessionID: slot.SessionID,
			Timers:    timers,
		})
	}
	return out
}

func participantsToDTO(items []participant.Participant) []participantDTO {
	out := make([]participantDTO, 0, len(items))
	for _, p := range items {
		out = append(out, participantDTO{
			ChannelID:      p.ChannelID,
			DisplayName:    p.DisplayName,
			ExternalGameID: p.ExternalGameID,
			Affiliation:    p.Affiliation,
		})
	}
	return out
}

func teamToDTO(t *team.Team) *teamDTO {
	if t == nil {
		return nil
	}
	return &teamDTO{Label: t.Label, Members: participantsToDTO(t.Members)}
}

func sessionToDTO(s session.Session) sessionDTO {
	rounds := s.Rounds.Rounds
	if rounds == nil {
		rounds = []string{}
	}
	return sessionDTO{
		ID:             s.ID,
		Origin:         string(s.Origin),
		SlotKey:        s.SlotKey,
		Status:         string(s.Status),
		MatchSpec:      s.MatchSpec,
		RoundsPerMap:   s.RoundsPerMap,
		PlayersPerTeam: s.PlayersPerTeam,
		SelfSelect:     s.SelfSelect,
		LobbyID:        s.ExternalLobbyID,
		Rounds:         rounds,
		CurrentRound:   s.Rounds.Current,
		CurrentMap:     s.Rounds.CurrentMap(),
		Participants:   participantsToDTO(s.Participants),
		TeamA:          teamToDTO(s.TeamA),
		TeamB:          teamToDTO(s.TeamB),
		StartAt:        formatTime(s.StartAt),
		CreatedAt:      formatTime(s.CreatedAt),
		UpdatedAt:      formatTime(s.UpdatedAt),
	}
}

func sessionEventToDTO(e session.Event) sessionEventDTO {
	return sessionEventDTO{
		EventID:      e.EventID,
		SessionID:    e.SessionID,
		Type:         string(e.Type),
		Status:       string(e.Status),
		LobbyID:      e.LobbyID,
		RoundIndex:   e.RoundIndex,
		Payload:      e.Payload,
		ErrorMessage: e.ErrorMessage,
		OccurredAt:   formatTime(e.OccurredAt),
		TraceID:      e.TraceID,
	}
}

func formatTime(v time.Time) string {
	if v.IsZero() {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
