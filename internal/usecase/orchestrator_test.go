package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/channel"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/lobby"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/round"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/session"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/team"
	chmemory "github.com/riskibarqy/scrim-scheduler/internal/infrastructure/channel/memory"
	lobbymemory "github.com/riskibarqy/scrim-scheduler/internal/infrastructure/lobby/memory"
	repomemory "github.com/riskibarqy/scrim-scheduler/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/scrim-scheduler/internal/infrastructure/roster"
	channelmock "github.com/riskibarqy/scrim-scheduler/internal/mocks/domain/channel"
	lobbymock "github.com/riskibarqy/scrim-scheduler/internal/mocks/domain/lobby"
	sessionmock "github.com/riskibarqy/scrim-scheduler/internal/mocks/domain/session"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/clock"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/id"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/logging"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	mondaySymbol = "1️⃣"
	waitFor      = 2 * time.Second
	tick         = 5 * time.Millisecond
)

type harness struct {
	orch      *Orchestrator
	hub       *chmemory.Hub
	calendar  *chmemory.Calendar
	lobbies   *lobbymemory.Service
	directory *roster.StaticDirectory
	resolver  *roster.Resolver
	journal   *repomemory.SessionEventRepository
	clock     *clock.Manual
	logs      *observer.ObservedLogs
	nextGame  int
}

type harnessOption func(*OrchestratorConfig, *OrchestratorDeps)

func testCatalog() *round.Catalog {
	return round.NewCatalog(map[string][]round.Map{
		"4": {
			{Name: "Dust", Value: "maps/dust"},
			{Name: "Nuke", Value: "maps/nuke"},
			{Name: "Any", Value: "4-All"},
		},
	})
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := logging.FromZap(zap.New(core))

	h := &harness{
		hub:       chmemory.NewHub(),
		calendar:  chmemory.NewCalendar(),
		lobbies:   lobbymemory.NewService(),
		directory: roster.NewStaticDirectory(nil),
		journal:   repomemory.NewSessionEventRepository(),
		// Saturday noon; the Monday slot starts two days later at 18:00.
		clock: clock.NewManual(time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)),
		logs:  logs,
	}
	h.resolver = roster.NewResolver(h.directory, roster.RoleParser{Labels: []string{"A-Team", "B-Team"}, MainSuffix: "-Main", IDPrefix: "id-"}, 0, 4)

	deps := OrchestratorDeps{
		Channel:  chmemory.NewChannel(h.hub),
		Calendar: h.calendar,
		Lobbies:  h.lobbies,
		Roster:   h.resolver,
		Journal:  h.journal,
		Catalog:  testCatalog(),
		Clock:    h.clock,
		IDs:      id.NewSequence("id"),
		Logger:   logger,
	}
	cfg := OrchestratorConfig{
		SlotDays:         []time.Weekday{time.Monday},
		StartHour:        18,
		Threshold:        8,
		ReminderLead:     30 * time.Minute,
		MinPerTeam:       4,
		PollMatchSpec:    "4-All",
		PollRoundsPerMap: 3,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	orch, err := NewOrchestrator(deps, cfg)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	h.orch = orch

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = orch.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) register(ids ...string) {
	for _, channelID := range ids {
		h.nextGame++
		h.directory.Set(channelID, "id-"+strconv.Itoa(100+h.nextGame))
	}
}

func (h *harness) registerWith(label string, ids ...string) {
	for _, channelID := range ids {
		h.directory.Set(channelID, label, "id-9"+strings.TrimPrefix(channelID, "u"))
	}
}

func (h *harness) openPoll(t *testing.T) PollView {
	t.Helper()
	view, err := h.orch.OpenPoll(context.Background())
	if err != nil {
		t.Fatalf("open poll: %v", err)
	}
	return view
}

func (h *harness) react(t *testing.T, symbol string, ids ...string) {
	t.Helper()
	for _, channelID := range ids {
		if err := h.orch.OnReactionAdd(context.Background(), symbol, channelID); err != nil {
			t.Fatalf("reaction add %s: %v", channelID, err)
		}
	}
}

func (h *harness) sync(t *testing.T) {
	t.Helper()
	if err := h.orch.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
}

func (h *harness) messages(title string) []chmemory.PostedMessage {
	var out []chmemory.PostedMessage
	for _, m := range h.hub.Messages() {
		if strings.HasPrefix(m.Message.Title, title) {
			out = append(out, m)
		}
	}
	return out
}

func (h *harness) waitMessage(t *testing.T, title string) chmemory.PostedMessage {
	t.Helper()
	var found chmemory.PostedMessage
	require.Eventually(t, func() bool {
		list := h.messages(title)
		if len(list) == 0 {
			return false
		}
		found = list[len(list)-1]
		return true
	}, waitFor, tick, "message %q was not posted", title)
	return found
}

func (h *harness) sessions(t *testing.T) []session.Session {
	t.Helper()
	list, err := h.orch.ActiveSessions(context.Background())
	if err != nil {
		t.Fatalf("active sessions: %v", err)
	}
	return list
}

func (h *harness) waitStatus(t *testing.T, status session.Status) session.Session {
	t.Helper()
	var found session.Session
	require.Eventually(t, func() bool {
		for _, s := range h.sessions(t) {
			if s.Status == status {
				found = s
				return true
			}
		}
		return false
	}, waitFor, tick, "no session reached %s", status)
	return found
}

func (h *harness) advanceToStart(t *testing.T, view PollView) {
	t.Helper()
	h.clock.Advance(view.Slots[0].StartAt.Sub(h.clock.Now()))
	h.sync(t)
}

func (h *harness) allReady(t *testing.T, ids ...string) {
	t.Helper()
	prompt := h.waitMessage(t, "Online check-in")
	for _, channelID := range ids {
		h.hub.React(prompt.Ref, DefaultReadySymbol, channelID, true, false)
	}
}

func players(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "u" + string(rune('a'+i))
	}
	return out
}

func TestOrchestrator_EightUnaffiliatedReactorsConfirmMixedSession(t *testing.T) {
	h := newHarness(t)
	ids := players(8)
	h.register(ids...)

	view := h.openPoll(t)
	if len(view.Slots) != 1 || view.Slots[0].Symbol != mondaySymbol {
		t.Fatalf("unexpected slots: %+v", view.Slots)
	}
	wantStart := time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC)
	if !view.Slots[0].StartAt.Equal(wantStart) {
		t.Fatalf("unexpected slot start %s", view.Slots[0].StartAt)
	}

	h.react(t, mondaySymbol, ids[:7]...)
	if got := h.sessions(t); len(got) != 0 {
		t.Fatalf("no session expected below threshold, got %d", len(got))
	}
	h.react(t, mondaySymbol, ids[7])

	list := h.sessions(t)
	if len(list) != 1 {
		t.Fatalf("expected one session, got %d", len(list))
	}
	s := list[0]
	if s.Status != session.StatusScheduled || s.Origin != session.OriginPoll || s.SlotKey != "monday" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.TeamA == nil || s.TeamB == nil || s.TeamA.Size() != 4 || s.TeamB.Size() != 4 {
		t.Fatalf("expected two teams of four, got %+v / %+v", s.TeamA, s.TeamB)
	}
	if s.TeamA.Label != team.MixedLabel || s.TeamB.Label != team.MixedLabel || !s.SelfSelect {
		t.Fatalf("expected a mixed self-select session, got %+v", s)
	}
	wantRounds := []string{"maps/dust", "maps/dust", "maps/dust", "maps/nuke", "maps/nuke", "maps/nuke"}
	if s.Rounds.Len() != len(wantRounds) {
		t.Fatalf("unexpected rounds %v", s.Rounds.Rounds)
	}
	for i, want := range wantRounds {
		if s.Rounds.Rounds[i] != want {
			t.Fatalf("round %d: want %s got %s", i, want, s.Rounds.Rounds[i])
		}
	}

	if len(h.messages("Scrim confirmed for Monday")) != 1 {
		t.Fatalf("expected one confirmation notice")
	}
	if len(h.calendar.Events()) != 1 {
		t.Fatalf("expected a calendar event")
	}
	current, open, err := h.orch.CurrentPoll(context.Background())
	if err != nil || !open {
		t.Fatalf("expected open poll, err=%v", err)
	}
	slot := current.Slots[0]
	if !slot.Confirmed || slot.SessionID != s.ID || len(slot.Timers) != 2 {
		t.Fatalf("unexpected slot state %+v", slot)
	}

	h.react(t, mondaySymbol, ids[0])
	if got := h.sessions(t); len(got) != 1 {
		t.Fatalf("duplicate reaction must not create another session, got %d", len(got))
	}
}

func TestOrchestrator_FullPollLifecycleWithAffiliatedTeams(t *testing.T) {
	h := newHarness(t)
	teamA := []string{"u1", "u2", "u3", "u4"}
	teamB := []string{"u5", "u6", "u7", "u8"}
	h.registerWith("A-Team", teamA...)
	h.registerWith("B-Team-Main", teamB...)
	all := append(append([]string(nil), teamA...), teamB...)

	view := h.openPoll(t)
	h.react(t, mondaySymbol, all...)

	h.clock.Advance(view.Slots[0].StartAt.Add(-30 * time.Minute).Sub(h.clock.Now()))
	h.sync(t)
	if len(h.messages("Scrim for Monday starts in")) != 1 {
		t.Fatalf("expected a reminder notice")
	}

	h.advanceToStart(t, view)
	h.waitStatus(t, session.StatusAwaitingReady)
	h.allReady(t, all...)

	s := h.waitStatus(t, session.StatusInProgress)
	if s.ExternalLobbyID != "lobby-1" || s.SelfSelect {
		t.Fatalf("unexpected session after lobby creation: %+v", s)
	}
	created, ok := h.lobbies.Get("lobby-1")
	if !ok {
		t.Fatalf("lobby not created")
	}
	if created.Request.MinReadyPerTeam != 4 || len(created.Request.TeamA) != 4 || created.Request.TeamA[0] != "91" {
		t.Fatalf("unexpected create request %+v", created.Request)
	}
	if len(h.messages("Teams formed")) != 1 || len(h.messages("Session created")) != 1 {
		t.Fatalf("expected teams formed and session created notices")
	}

	if err := h.orch.OnLobbyStarted(context.Background(), "lobby-1"); err != nil {
		t.Fatalf("lobby started: %v", err)
	}
	if got := h.messages("Lobby started"); len(got) != 1 || got[0].Message.Body != "Current map: Dust" {
		t.Fatalf("unexpected lobby started notice %+v", got)
	}

	for i := 0; i < 5; i++ {
		if err := h.orch.OnLobbyEnded(context.Background(), "lobby-1"); err != nil {
			t.Fatalf("lobby ended %d: %v", i, err)
		}
	}
	list := h.sessions(t)
	if len(list) != 1 || list[0].Rounds.Current != 5 {
		t.Fatalf("expected last round in play, got %+v", list)
	}
	if l, _ := h.lobbies.Get("lobby-1"); l.MapRef != "maps/nuke" || l.Updates != 5 {
		t.Fatalf("unexpected lobby after updates %+v", l)
	}

	if err := h.orch.OnLobbyEnded(context.Background(), "lobby-1"); err != nil {
		t.Fatalf("final lobby ended: %v", err)
	}
	if got := h.sessions(t); len(got) != 0 {
		t.Fatalf("completed session must leave the registry, got %+v", got)
	}
	if destroyed := h.lobbies.Destroyed(); len(destroyed) != 1 || destroyed[0] != "lobby-1" {
		t.Fatalf("expected lobby destroyed, got %v", destroyed)
	}
	if len(h.messages("Session complete")) != 1 {
		t.Fatalf("expected completion notice")
	}

	events, err := h.orch.SessionEvents(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("session events: %v", err)
	}
	var types []session.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	if types[0] != session.EventCreated || types[len(types)-1] != session.EventCompleted {
		t.Fatalf("unexpected journal %v", types)
	}
}

func TestOrchestrator_LobbyCreateFailureFailsSessionOnce(t *testing.T) {
	h := newHarness(t, func(cfg *OrchestratorConfig, _ *OrchestratorDeps) {
		cfg.Threshold = 2
		cfg.MinPerTeam = 1
	})
	h.lobbies.FailCreate(errors.New("lobby api down"))
	h.register("u1", "u2")

	view := h.openPoll(t)
	h.react(t, mondaySymbol, "u1", "u2")
	h.advanceToStart(t, view)
	h.allReady(t, "u1", "u2")

	require.Eventually(t, func() bool { return len(h.messages("Session failed")) > 0 }, waitFor, tick)
	h.sync(t)

	if got := h.messages("Session failed"); len(got) != 1 || got[0].Message.Body != "The lobby could not be created" {
		t.Fatalf("expected exactly one failure notice, got %+v", got)
	}
	if got := h.sessions(t); len(got) != 0 {
		t.Fatalf("failed session must not stay registered, got %+v", got)
	}
	if pending := h.clock.Pending(); pending != 0 {
		t.Fatalf("expected no timers left, got %d", pending)
	}
	if len(h.messages("Session created")) != 0 {
		t.Fatalf("no session created notice expected")
	}
}

func TestOrchestrator_UnknownLobbyCallbackIsLoggedOnly(t *testing.T) {
	h := newHarness(t)

	if err := h.orch.OnLobbyEnded(context.Background(), "991"); err != nil {
		t.Fatalf("unknown lobby must not error, got %v", err)
	}

	entries := h.logs.FilterMessage("lobby callback ignored").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["lobby_id"] != "991" || fields["callback"] != lobby.CallbackEnded {
		t.Fatalf("unexpected log fields %v", fields)
	}
	if len(h.hub.Messages()) != 0 {
		t.Fatalf("no notice expected for unknown lobby")
	}
}

func TestOrchestrator_ReactionDropCancelsScheduledSession(t *testing.T) {
	h := newHarness(t, func(cfg *OrchestratorConfig, _ *OrchestratorDeps) {
		cfg.Threshold = 2
		cfg.MinPerTeam = 1
	})
	h.register("u1", "u2")

	view := h.openPoll(t)
	h.react(t, mondaySymbol, "u1", "u2")
	if len(h.sessions(t)) != 1 || len(h.calendar.Events()) != 1 {
		t.Fatalf("expected a scheduled session with a calendar event")
	}

	if err := h.orch.OnReactionRemove(context.Background(), mondaySymbol, "u2"); err != nil {
		t.Fatalf("reaction remove: %v", err)
	}
	if got := h.sessions(t); len(got) != 0 {
		t.Fatalf("session must be cancelled, got %+v", got)
	}
	cancelled := h.messages("Scrim for Monday cancelled")
	if len(cancelled) != 1 || !strings.HasPrefix(cancelled[0].Message.Body, "1 player(s) required") {
		t.Fatalf("unexpected cancel notice %+v", cancelled)
	}
	if len(h.calendar.Events()) != 0 {
		t.Fatalf("calendar event must be deleted")
	}
	if pending := h.clock.Pending(); pending != 0 {
		t.Fatalf("slot timers must be cancelled, got %d", pending)
	}

	h.advanceToStart(t, view)
	h.clock.Advance(time.Hour)
	h.sync(t)
	if len(h.messages("Scrim for Monday starts in")) != 0 {
		t.Fatalf("reminder must not fire after cancellation")
	}
	if len(h.messages("Online check-in")) != 0 {
		t.Fatalf("readiness must not start after cancellation")
	}
}

func TestOrchestrator_RemovalAfterLobbyCreationKeepsSession(t *testing.T) {
	h := newHarness(t, func(cfg *OrchestratorConfig, _ *OrchestratorDeps) {
		cfg.Threshold = 2
		cfg.MinPerTeam = 1
	})
	h.register("u1", "u2")

	view := h.openPoll(t)
	h.react(t, mondaySymbol, "u1", "u2")
	h.advanceToStart(t, view)
	h.allReady(t, "u1", "u2")
	h.waitStatus(t, session.StatusInProgress)

	if err := h.orch.OnReactionRemove(context.Background(), mondaySymbol, "u1"); err != nil {
		t.Fatalf("reaction remove: %v", err)
	}
	if got := h.sessions(t); len(got) != 1 || got[0].Status != session.StatusInProgress {
		t.Fatalf("session with a lobby must be kept, got %+v", got)
	}
}

func TestOrchestrator_ReadyTimeoutFailsSession(t *testing.T) {
	h := newHarness(t, func(cfg *OrchestratorConfig, _ *OrchestratorDeps) {
		cfg.Threshold = 2
		cfg.MinPerTeam = 1
		cfg.ReadyTimeout = 5 * time.Minute
	})
	h.register("u1", "u2")

	view := h.openPoll(t)
	h.react(t, mondaySymbol, "u1", "u2")
	h.advanceToStart(t, view)
	prompt := h.waitMessage(t, "Online check-in")
	h.hub.React(prompt.Ref, DefaultReadySymbol, "u1", true, false)

	h.clock.Advance(5 * time.Minute)
	h.sync(t)

	if got := h.messages("Session failed"); len(got) != 1 {
		t.Fatalf("expected one failure notice, got %d", len(got))
	}
	if got := h.sessions(t); len(got) != 0 {
		t.Fatalf("timed out session must leave the registry, got %+v", got)
	}
	if len(h.lobbies.Destroyed()) != 0 {
		t.Fatalf("no lobby expected")
	}

	if err := h.orch.OnReactionRemove(context.Background(), mondaySymbol, "u2"); err != nil {
		t.Fatalf("reaction remove: %v", err)
	}
	if h.logs.FilterMessage("slot below threshold after its session ended").Len() != 1 {
		t.Fatalf("expected the ended-session log line")
	}
	if h.logs.FilterMessage("slot below threshold after lobby creation, session kept").Len() != 0 {
		t.Fatalf("a failed session must not be reported as kept")
	}
	if len(h.messages("Scrim for Monday cancelled")) != 0 {
		t.Fatalf("no cancellation notice expected for a slot whose session already failed")
	}
}

func TestOrchestrator_OpenPollReplacesPreviousPoll(t *testing.T) {
	h := newHarness(t, func(cfg *OrchestratorConfig, _ *OrchestratorDeps) {
		cfg.Threshold = 2
		cfg.MinPerTeam = 1
	})
	h.register("u1", "u2")

	first := h.openPoll(t)
	h.react(t, mondaySymbol, "u1", "u2")
	if len(h.sessions(t)) != 1 {
		t.Fatalf("expected scheduled session")
	}

	second := h.openPoll(t)
	if second.ID == first.ID || second.Slots[0].Reactors != 0 {
		t.Fatalf("expected a fresh poll, got %+v", second)
	}
	if got := h.sessions(t); len(got) != 0 {
		t.Fatalf("pending session of the old poll must be cancelled, got %+v", got)
	}
	if pending := h.clock.Pending(); pending != 0 {
		t.Fatalf("old slot timers must be cancelled, got %d", pending)
	}
}

func TestOrchestrator_OpenPollChannelUnavailable(t *testing.T) {
	h := newHarness(t)
	h.hub.SetUnavailable(true)

	if _, err := h.orch.OpenPoll(context.Background()); !errors.Is(err, channel.ErrUnavailable) {
		t.Fatalf("expected channel unavailable, got %v", err)
	}
	if _, open, _ := h.orch.CurrentPoll(context.Background()); open {
		t.Fatalf("no poll must be open")
	}
	if err := h.orch.OnReactionAdd(context.Background(), mondaySymbol, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found without a poll, got %v", err)
	}
}

func TestOrchestrator_ManualSessionJoinReadyAndCreate(t *testing.T) {
	h := newHarness(t)
	h.register("u1", "u2")

	s, err := h.orch.RequestManualSession(context.Background(), ManualSessionRequest{
		MatchSpec:      "maps/dust",
		RoundsPerMap:   2,
		PlayersPerTeam: 1,
	})
	if err != nil {
		t.Fatalf("request manual session: %v", err)
	}
	if s.Status != session.StatusCollecting || s.Origin != session.OriginManual || s.Rounds.Len() != 2 {
		t.Fatalf("unexpected manual session %+v", s)
	}

	prompt := h.waitMessage(t, "Session queue open")
	h.hub.React(prompt.Ref, DefaultReadySymbol, "u9", true, false)
	h.hub.React(prompt.Ref, DefaultReadySymbol, "u1", true, false)
	h.hub.React(prompt.Ref, DefaultReadySymbol, "u2", true, false)

	h.allReady(t, "u1", "u2")
	got := h.waitStatus(t, session.StatusInProgress)
	if got.ID != s.ID || got.TeamA == nil || got.TeamA.Size() != 1 || got.TeamB.Size() != 1 {
		t.Fatalf("unexpected session after lobby creation %+v", got)
	}
	if len(h.messages("Game id required")) != 1 {
		t.Fatalf("unregistered member must be told to register once")
	}
	created, _ := h.lobbies.Get(got.ExternalLobbyID)
	if created.Request.MapRef != "maps/dust" || created.Request.MinReadyPerTeam != 1 {
		t.Fatalf("unexpected create request %+v", created.Request)
	}
}

func TestOrchestrator_ManualSessionInvalidSpec(t *testing.T) {
	h := newHarness(t)

	cases := []ManualSessionRequest{
		{MatchSpec: "maps/dust", RoundsPerMap: 0, PlayersPerTeam: 4},
		{MatchSpec: "maps/dust", RoundsPerMap: 6, PlayersPerTeam: 4},
		{MatchSpec: "9-All", RoundsPerMap: 1, PlayersPerTeam: 4},
		{MatchSpec: "", RoundsPerMap: 1, PlayersPerTeam: 4},
	}
	for _, req := range cases {
		if _, err := h.orch.RequestManualSession(context.Background(), req); !errors.Is(err, round.ErrInvalidSpec) {
			t.Fatalf("expected invalid spec for %+v, got %v", req, err)
		}
	}
	if _, err := h.orch.RequestManualSession(context.Background(), ManualSessionRequest{MatchSpec: "maps/dust", RoundsPerMap: 1, PlayersPerTeam: 7}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for team size, got %v", err)
	}
	if len(h.hub.Messages()) != 0 {
		t.Fatalf("nothing must be posted for rejected requests")
	}
}

func TestOrchestrator_JoinTimeoutFailsManualSession(t *testing.T) {
	h := newHarness(t, func(cfg *OrchestratorConfig, _ *OrchestratorDeps) {
		cfg.JoinTimeout = 10 * time.Minute
	})

	if _, err := h.orch.RequestManualSession(context.Background(), ManualSessionRequest{
		MatchSpec:      "4-All",
		RoundsPerMap:   1,
		PlayersPerTeam: 4,
	}); err != nil {
		t.Fatalf("request manual session: %v", err)
	}
	h.waitMessage(t, "Session queue open")

	h.clock.Advance(10 * time.Minute)
	h.sync(t)

	failed := h.messages("Session failed")
	if len(failed) != 1 || failed[0].Message.Body != "Not enough players joined the lobby in time" {
		t.Fatalf("unexpected failure notices %+v", failed)
	}
	if got := h.sessions(t); len(got) != 0 {
		t.Fatalf("timed out session must leave the registry, got %+v", got)
	}
}

func TestOrchestrator_RoundUpdateFailureTearsDownLobby(t *testing.T) {
	lobbies := lobbymock.NewService(t)
	h := newHarness(t, func(_ *OrchestratorConfig, deps *OrchestratorDeps) {
		deps.Lobbies = lobbies
	})
	h.register("u1", "u2")

	lobbies.On("Create", mock.Anything, mock.MatchedBy(func(req lobby.CreateRequest) bool {
		return req.MapRef == "maps/dust" && len(req.Players) == 2
	})).Return(lobby.Handle{LobbyID: "991"}, nil).Once()
	lobbies.On("Update", mock.Anything, "991", "maps/dust").Return(errors.New("mission rejected")).Once()
	lobbies.On("Destroy", mock.Anything, "991").Return(nil).Once()

	if _, err := h.orch.RequestManualSession(context.Background(), ManualSessionRequest{
		MatchSpec:      "maps/dust",
		RoundsPerMap:   2,
		PlayersPerTeam: 1,
		SelfSelect:     true,
	}); err != nil {
		t.Fatalf("request manual session: %v", err)
	}
	prompt := h.waitMessage(t, "Session queue open")
	h.hub.React(prompt.Ref, DefaultReadySymbol, "u1", true, false)
	h.hub.React(prompt.Ref, DefaultReadySymbol, "u2", true, false)
	h.allReady(t, "u1", "u2")
	s := h.waitStatus(t, session.StatusInProgress)
	if s.TeamA != nil || !s.SelfSelect {
		t.Fatalf("self-select session must not carry teams, got %+v", s)
	}

	if err := h.orch.OnLobbyEnded(context.Background(), "991"); err != nil {
		t.Fatalf("lobby ended: %v", err)
	}
	if got := h.sessions(t); len(got) != 0 {
		t.Fatalf("session must fail, got %+v", got)
	}
	if got := h.messages("Session failed"); len(got) != 1 {
		t.Fatalf("expected one failure notice, got %d", len(got))
	}
}

func TestOrchestrator_JournalFailureIsNotFatal(t *testing.T) {
	journal := sessionmock.NewRepository(t)
	journal.On("AppendEvent", mock.Anything, mock.AnythingOfType("session.Event")).Return(errors.New("db down"))
	h := newHarness(t, func(cfg *OrchestratorConfig, deps *OrchestratorDeps) {
		cfg.Threshold = 2
		cfg.MinPerTeam = 1
		deps.Journal = journal
	})
	h.register("u1", "u2")

	h.openPoll(t)
	h.react(t, mondaySymbol, "u1", "u2")
	if got := h.sessions(t); len(got) != 1 || got[0].Status != session.StatusScheduled {
		t.Fatalf("session must be scheduled despite journal failure, got %+v", got)
	}
	if h.logs.FilterMessage("append session event failed").Len() == 0 {
		t.Fatalf("journal failure must be logged")
	}
}

func TestOrchestrator_StartCheckWithoutEnoughRegisteredPlayersFails(t *testing.T) {
	h := newHarness(t, func(cfg *OrchestratorConfig, _ *OrchestratorDeps) {
		cfg.Threshold = 2
		cfg.MinPerTeam = 1
	})
	h.register("u1", "u2")

	view := h.openPoll(t)
	h.react(t, mondaySymbol, "u1", "u2")
	// u2 loses the game id role after confirmation.
	h.directory.Set("u2")
	h.resolver.Forget(context.Background(), "u2")
	h.advanceToStart(t, view)

	if got := h.messages("Session failed"); len(got) != 1 {
		t.Fatalf("expected one failure notice, got %d", len(got))
	}
	if len(h.messages("Online check-in")) != 0 {
		t.Fatalf("readiness must not start")
	}
}

func TestNewOrchestrator_RejectsInvalidPollSpec(t *testing.T) {
	_, err := NewOrchestrator(OrchestratorDeps{
		Channel: chmemory.NewChannel(nil),
		Lobbies: lobbymemory.NewService(),
		Roster:  roster.NewResolver(roster.NewStaticDirectory(nil), roster.RoleParser{}, 0, 1),
		Catalog: testCatalog(),
		Logger:  logging.NewNop(),
	}, OrchestratorConfig{
		SlotDays:      []time.Weekday{time.Monday},
		PollMatchSpec: "7-All",
	})
	if !errors.Is(err, round.ErrInvalidSpec) {
		t.Fatalf("expected invalid spec, got %v", err)
	}
}

func TestOrchestrator_CalendarFailureStillConfirmsSlot(t *testing.T) {
	calendar := channelmock.NewEventScheduler(t)
	calendar.On("CreateEvent", mock.Anything, mock.MatchedBy(func(e channel.CalendarEvent) bool {
		return e.Name == "Scrim Monday" && e.EndAt.Sub(e.StartAt) == 2*time.Hour
	})).Return("", errors.New("calendar offline")).Once()

	h := newHarness(t, func(cfg *OrchestratorConfig, deps *OrchestratorDeps) {
		cfg.Threshold = 2
		cfg.MinPerTeam = 1
		deps.Calendar = calendar
	})
	h.register("u1", "u2")
	h.openPoll(t)

	h.react(t, mondaySymbol, "u1", "u2")
	if got := h.sessions(t); len(got) != 1 || got[0].Status != session.StatusScheduled {
		t.Fatalf("expected a scheduled session despite the calendar failure, got %+v", got)
	}
	if h.logs.FilterMessage("create calendar event failed").Len() != 1 {
		t.Fatalf("expected the calendar failure to be logged")
	}

	// No event id was kept, so reverting the slot must not call DeleteEvent.
	if err := h.orch.OnReactionRemove(context.Background(), mondaySymbol, "u2"); err != nil {
		t.Fatalf("reaction remove: %v", err)
	}
	if got := h.sessions(t); len(got) != 0 {
		t.Fatalf("session must be cancelled, got %+v", got)
	}
}

func TestOrchestrator_RevertDeletesCreatedCalendarEvent(t *testing.T) {
	calendar := channelmock.NewEventScheduler(t)
	calendar.On("CreateEvent", mock.Anything, mock.Anything).Return("evt-42", nil).Once()
	calendar.On("DeleteEvent", mock.Anything, "evt-42").Return(errors.New("already gone")).Once()

	h := newHarness(t, func(cfg *OrchestratorConfig, deps *OrchestratorDeps) {
		cfg.Threshold = 2
		cfg.MinPerTeam = 1
		deps.Calendar = calendar
	})
	h.register("u1", "u2")
	h.openPoll(t)
	h.react(t, mondaySymbol, "u1", "u2")

	if err := h.orch.OnReactionRemove(context.Background(), mondaySymbol, "u1"); err != nil {
		t.Fatalf("reaction remove: %v", err)
	}
	if h.logs.FilterMessage("delete calendar event failed").Len() != 1 {
		t.Fatalf("expected the delete failure to be logged")
	}
	if len(h.messages("Scrim for Monday cancelled")) != 1 {
		t.Fatalf("expected one cancellation notice")
	}
}

func hasDeadline(ctx context.Context) bool {
	_, ok := ctx.Deadline()
	return ok
}

func TestOrchestrator_FailedCreateLeavesOtherLobbyRunning(t *testing.T) {
	lobbies := lobbymock.NewService(t)
	h := newHarness(t, func(cfg *OrchestratorConfig, deps *OrchestratorDeps) {
		cfg.LobbyCallTimeout = time.Minute
		deps.Lobbies = lobbies
	})
	h.register("u1", "u2", "u3", "u4")

	lobbies.On("Create", mock.MatchedBy(hasDeadline), mock.Anything).
		Return(lobby.Handle{LobbyID: "991"}, nil).Once()
	lobbies.On("Create", mock.MatchedBy(hasDeadline), mock.Anything).
		Return(lobby.Handle{}, fmt.Errorf("%w: a lobby is already running", lobby.ErrCreate)).Once()

	req := ManualSessionRequest{MatchSpec: "maps/dust", RoundsPerMap: 1, PlayersPerTeam: 1, SelfSelect: true}
	if _, err := h.orch.RequestManualSession(context.Background(), req); err != nil {
		t.Fatalf("request first session: %v", err)
	}
	prompt := h.waitMessage(t, "Session queue open")
	h.hub.React(prompt.Ref, DefaultReadySymbol, "u1", true, false)
	h.hub.React(prompt.Ref, DefaultReadySymbol, "u2", true, false)
	h.allReady(t, "u1", "u2")
	first := h.waitStatus(t, session.StatusInProgress)

	if _, err := h.orch.RequestManualSession(context.Background(), req); err != nil {
		t.Fatalf("request second session: %v", err)
	}
	require.Eventually(t, func() bool { return len(h.messages("Session queue open")) == 2 }, waitFor, tick)
	prompt = h.waitMessage(t, "Session queue open")
	h.hub.React(prompt.Ref, DefaultReadySymbol, "u3", true, false)
	h.hub.React(prompt.Ref, DefaultReadySymbol, "u4", true, false)
	require.Eventually(t, func() bool { return len(h.messages("Online check-in")) == 2 }, waitFor, tick)
	h.allReady(t, "u3", "u4")

	require.Eventually(t, func() bool { return len(h.messages("Session failed")) == 1 }, waitFor, tick)
	h.sync(t)

	lobbies.AssertNotCalled(t, "Destroy", mock.Anything, mock.Anything)
	got := h.sessions(t)
	if len(got) != 1 || got[0].ID != first.ID || got[0].Status != session.StatusInProgress || got[0].ExternalLobbyID != "991" {
		t.Fatalf("the running session must survive, got %+v", got)
	}
}

func TestOrchestrator_ManualSessionCapsTeamsAtPlayersPerTeam(t *testing.T) {
	h := newHarness(t, func(cfg *OrchestratorConfig, _ *OrchestratorDeps) {
		cfg.JoinMinHeadcount = 3
	})
	h.register("u1", "u2", "u3")

	if _, err := h.orch.RequestManualSession(context.Background(), ManualSessionRequest{
		MatchSpec:      "maps/dust",
		RoundsPerMap:   1,
		PlayersPerTeam: 1,
	}); err != nil {
		t.Fatalf("request manual session: %v", err)
	}
	prompt := h.waitMessage(t, "Session queue open")
	h.hub.React(prompt.Ref, DefaultReadySymbol, "u1", true, false)
	h.hub.React(prompt.Ref, DefaultReadySymbol, "u2", true, false)
	h.hub.React(prompt.Ref, DefaultReadySymbol, "u3", true, false)

	h.allReady(t, "u1", "u2")
	got := h.waitStatus(t, session.StatusInProgress)
	if got.TeamA == nil || got.TeamA.Size() != 1 || got.TeamB.Size() != 1 || len(got.Participants) != 2 {
		t.Fatalf("expected 1v1 teams, got %+v", got)
	}
	created, _ := h.lobbies.Get(got.ExternalLobbyID)
	if len(created.Request.Players) != 2 || len(created.Request.TeamA) != 1 || len(created.Request.TeamB) != 1 {
		t.Fatalf("unexpected create request %+v", created.Request)
	}
}
