package usecase

import (
	"fmt"
	"strconv"
	"time"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/channel"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/lobby"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/participant"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/poll"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/session"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/team"
	"github.com/valyala/bytebufferpool"
)

func mentionList(items []participant.Participant) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for i, p := range items {
		if i > 0 {
			_, _ = buf.WriteString(", ")
		}
		_, _ = buf.WriteString(p.Mention())
	}
	return buf.String()
}

func teamLine(label string, t *team.Team) string {
	if t == nil {
		return ""
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString(label)
	_, _ = buf.WriteString(" (")
	_, _ = buf.WriteString(t.Label)
	_, _ = buf.WriteString(", ")
	_, _ = buf.WriteString(strconv.Itoa(t.Size()))
	_, _ = buf.WriteString(" players): ")
	_, _ = buf.WriteString(mentionList(t.Members))
	return buf.String()
}

func pollNotice(p *poll.Poll) channel.Message {
	fields := make([]channel.Field, 0, len(p.Slots))
	for _, slot := range p.Slots {
		fields = append(fields, channel.Field{
			Name:  slot.Symbol,
			Value: slot.Label + " " + slot.StartAt.UTC().Format("02 Jan 15:04 UTC"),
		})
	}
	return channel.Message{
		Title:  "Scrim interest",
		Body:   fmt.Sprintf("React with the number of every day you can play. A day is confirmed once %d players react.", p.Threshold),
		Fields: fields,
	}
}

func slotConfirmedNotice(slot *poll.Slot, s *session.Session) channel.Message {
	msg := channel.Message{
		Title:    fmt.Sprintf("Scrim confirmed for %s at %s", slot.Label, slot.StartAt.UTC().Format("15:04 UTC")),
		Mentions: participant.ChannelIDs(s.Participants),
	}
	if s.SelfSelect {
		msg.Body = "Mixed team session: " + mentionList(s.Participants)
		return msg
	}
	msg.Body = teamLine("Team 1", s.TeamA) + "\n" + teamLine("Team 2", s.TeamB)
	return msg
}

func reminderNotice(slot *poll.Slot, s *session.Session, lead time.Duration) channel.Message {
	return channel.Message{
		Title:    fmt.Sprintf("Scrim for %s starts in %s", slot.Label, lead.Round(time.Minute)),
		Body:     mentionList(s.Participants),
		Mentions: participant.ChannelIDs(s.Participants),
	}
}

func slotCancelledNotice(slot *poll.Slot, missing int) channel.Message {
	return channel.Message{
		Title: fmt.Sprintf("Scrim for %s cancelled. Not enough players.", slot.Label),
		Body:  fmt.Sprintf("%d player(s) required to recreate the event. If interested, react to the original post.", missing),
	}
}

func readinessPrompt(s *session.Session, symbol string) channel.Message {
	return channel.Message{
		Title:    "Online check-in",
		Body:     fmt.Sprintf("React with %s once you are online and logged in. All %d players must react before invites are sent.", symbol, len(s.Participants)),
		Mentions: participant.ChannelIDs(s.Participants),
	}
}

func joinPrompt(s *session.Session, target int, symbol string) channel.Message {
	mode := "assigned teams"
	if s.SelfSelect {
		mode = "self-selected teams"
	}
	return channel.Message{
		Title: "Session queue open",
		Body: fmt.Sprintf("React with %s to join. %d players needed, %d per team, %s, %d round(s) per map.",
			symbol, target, s.PlayersPerTeam, mode, s.RoundsPerMap),
	}
}

func registrationRequiredNotice(channelID string) channel.Message {
	return channel.Message{
		Title:    "Game id required",
		Body:     "<@" + channelID + ">, register your game id before joining sessions.",
		Mentions: []string{channelID},
	}
}

func teamsFormedNotice(s *session.Session) channel.Message {
	return channel.Message{
		Title:    fmt.Sprintf("Teams formed (rounds per map %d)", s.RoundsPerMap),
		Body:     teamLine("Team A", s.TeamA) + "\n" + teamLine("Team B", s.TeamB),
		Mentions: participant.ChannelIDs(s.Participants),
	}
}

func sessionCreatedNotice(s *session.Session, handle lobby.Handle, mapName string) channel.Message {
	offline := make(map[string]struct{}, len(handle.OfflineInvites))
	for _, id := range handle.OfflineInvites {
		offline[id] = struct{}{}
	}
	fields := make([]channel.Field, 0, len(s.Participants))
	for _, p := range s.Participants {
		status := "Invited"
		if _, ok := offline[p.ExternalGameID]; ok {
			status = "Offline"
		}
		fields = append(fields, channel.Field{Name: status, Value: p.Mention()})
	}
	return channel.Message{
		Title:    "Session created",
		Body:     fmt.Sprintf("Map: %s\nRounds: %d\nPlayers: %d", mapName, s.Rounds.Len(), len(s.Participants)),
		Fields:   fields,
		Mentions: participant.ChannelIDs(s.Participants),
	}
}

func lobbyStartedNotice(mapName string) channel.Message {
	return channel.Message{Title: "Lobby started", Body: "Current map: " + mapName}
}

func roundEndedNotice(completed, total int, nextMap string) channel.Message {
	body := "That was the last round."
	if nextMap != "" {
		body = "Next map: " + nextMap
	}
	return channel.Message{
		Title: fmt.Sprintf("Round %d of %d finished", completed, total),
		Body:  body,
	}
}

func sessionCompleteNotice(total int) channel.Message {
	return channel.Message{Title: "Session complete", Body: fmt.Sprintf("All %d rounds played.", total)}
}

func lobbyStaleNotice(lobbyID string) channel.Message {
	return channel.Message{Title: "Lobby inactive", Body: fmt.Sprintf("Lobby %s has been idle. Join or it may be closed.", lobbyID)}
}

func sessionFailedNotice(s *session.Session, reason string) channel.Message {
	return channel.Message{
		Title:    "Session failed",
		Body:     reason,
		Mentions: participant.ChannelIDs(s.Participants),
	}
}
