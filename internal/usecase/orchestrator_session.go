package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/lobby"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/participant"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/round"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/session"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/team"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/clock"
	"go.opentelemetry.io/otel/attribute"
)

const (
	timerReadyTimeout = "ready-timeout"
	timerJoinTimeout  = "join-timeout"

	maxRoundsPerMap   = 5
	maxPlayersPerTeam = 6
)

type ManualSessionRequest struct {
	MatchSpec      string
	RoundsPerMap   int
	PlayersPerTeam int
	SelfSelect     bool
}

func (r ManualSessionRequest) Validate() error {
	if r.RoundsPerMap < 1 || r.RoundsPerMap > maxRoundsPerMap {
		return fmt.Errorf("%w: rounds per map must be between 1 and %d", round.ErrInvalidSpec, maxRoundsPerMap)
	}
	if r.PlayersPerTeam < 1 || r.PlayersPerTeam > maxPlayersPerTeam {
		return fmt.Errorf("%w: players per team must be between 1 and %d", ErrInvalidInput, maxPlayersPerTeam)
	}
	return nil
}

// RequestManualSession opens a join queue for an ad hoc session. The returned
// snapshot is in collecting state; the rest of the lifecycle runs in the background.
func (o *Orchestrator) RequestManualSession(ctx context.Context, req ManualSessionRequest) (session.Session, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.Orchestrator.RequestManualSession",
		attribute.String("session.match_spec", req.MatchSpec),
		attribute.Int("session.rounds_per_map", req.RoundsPerMap),
	)
	defer span.End()

	if err := req.Validate(); err != nil {
		return session.Session{}, err
	}
	rounds, err := round.Expand(req.MatchSpec, req.RoundsPerMap, o.catalog)
	if err != nil {
		return session.Session{}, err
	}

	var out session.Session
	err = o.submit(ctx, func(ctx context.Context) error {
		s, err := o.startManualSession(ctx, req, rounds)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return session.Session{}, err
	}
	return out, nil
}

func (o *Orchestrator) joinTarget(perTeam int) int {
	if o.cfg.JoinMinHeadcount > 0 {
		return o.cfg.JoinMinHeadcount
	}
	return 2 * perTeam
}

func (o *Orchestrator) startManualSession(ctx context.Context, req ManualSessionRequest, rounds []string) (session.Session, error) {
	s, err := o.newSession(session.OriginManual, req.MatchSpec, req.RoundsPerMap, req.PlayersPerTeam, rounds, session.StatusCollecting)
	if err != nil {
		return session.Session{}, err
	}
	s.SelfSelect = req.SelfSelect
	s.StartAt = s.CreatedAt

	run := &sessionRun{session: s, timers: clock.NewSet(o.clock)}
	o.pending[s.ID] = run
	target := o.joinTarget(req.PlayersPerTeam)
	o.record(ctx, run, session.EventCreated, map[string]any{
		"match_spec": req.MatchSpec,
		"target":     target,
		"rounds":     len(rounds),
	}, "")

	waitCtx, cancel := context.WithCancel(o.loopCtx)
	run.cancel = cancel
	if o.cfg.JoinTimeout > 0 {
		run.timers.Schedule(timerJoinTimeout, o.clock.Now().Add(o.cfg.JoinTimeout), func() {
			o.enqueue(func(ctx context.Context) error {
				return o.onWaitTimeout(ctx, run, "Not enough players joined the lobby in time")
			})
		})
	}

	prompt := joinPrompt(s, target, o.joins.symbol)
	if err := o.pool.Submit(func() {
		joined, err := o.joins.Collect(waitCtx, prompt, target)
		o.enqueue(func(ctx context.Context) error { return o.onJoinResult(ctx, run, joined, err) })
	}); err != nil {
		o.failRun(ctx, run, "no worker is free to collect players", err)
		return session.Session{}, fmt.Errorf("%w: submit join collection: %w", ErrDependencyUnavailable, err)
	}

	o.logger.InfoContext(ctx, "manual session requested",
		"session_id", s.ID,
		"match_spec", req.MatchSpec,
		"target", target,
		"self_select", req.SelfSelect,
	)
	return s.Snapshot(), nil
}

func (o *Orchestrator) onJoinResult(ctx context.Context, run *sessionRun, joined []participant.Participant, err error) error {
	s := run.session
	if o.pending[s.ID] != run || s.Status != session.StatusCollecting {
		return nil
	}
	run.timers.Cancel(timerJoinTimeout)
	run.stopWait()

	if err != nil {
		if errors.Is(err, ErrJoinAbandoned) {
			o.cancelRun(ctx, run, "join collection abandoned")
			return nil
		}
		o.failRun(ctx, run, "the join queue could not be run", err)
		return nil
	}

	s.Participants = joined
	if !s.SelfSelect {
		formation, ok := team.SplitEven(joined, s.PlayersPerTeam)
		if !ok {
			o.failRun(ctx, run, "not enough players to form two teams", nil)
			return nil
		}
		a, b := formation.TeamA, formation.TeamB
		s.Participants = formation.Participants()
		s.TeamA = &a
		s.TeamB = &b
	}
	return o.beginReadiness(ctx, run)
}

func (o *Orchestrator) beginReadiness(ctx context.Context, run *sessionRun) error {
	s := run.session
	o.transition(ctx, run, session.StatusAwaitingReady, session.EventAwaitingReady, map[string]any{
		"participants": len(s.Participants),
	}, "")

	waitCtx, cancel := context.WithCancel(o.loopCtx)
	run.cancel = cancel
	if o.cfg.ReadyTimeout > 0 {
		run.timers.Schedule(timerReadyTimeout, o.clock.Now().Add(o.cfg.ReadyTimeout), func() {
			o.enqueue(func(ctx context.Context) error {
				return o.onWaitTimeout(ctx, run, "Not every player checked in before the deadline")
			})
		})
	}

	participants := append([]participant.Participant(nil), s.Participants...)
	prompt := readinessPrompt(s, o.readiness.Symbol())
	if err := o.pool.Submit(func() {
		ready, err := o.readiness.AwaitReady(waitCtx, participants, prompt)
		o.enqueue(func(ctx context.Context) error { return o.onReadinessResult(ctx, run, ready, err) })
	}); err != nil {
		o.failRun(ctx, run, "no worker is free to track the online check", err)
		return fmt.Errorf("%w: submit readiness wait: %w", ErrDependencyUnavailable, err)
	}
	return nil
}

func (o *Orchestrator) onWaitTimeout(ctx context.Context, run *sessionRun, reason string) error {
	if o.pending[run.session.ID] != run {
		return nil
	}
	o.failRun(ctx, run, reason, nil)
	return nil
}

func (o *Orchestrator) onReadinessResult(ctx context.Context, run *sessionRun, ready ReadySet, err error) error {
	s := run.session
	if o.pending[s.ID] != run || s.Status != session.StatusAwaitingReady {
		return nil
	}
	run.timers.Cancel(timerReadyTimeout)
	run.stopWait()

	if err != nil {
		if errors.Is(err, ErrReadinessAbandoned) {
			o.cancelRun(ctx, run, "online check abandoned")
			return nil
		}
		o.failRun(ctx, run, "the online check could not be run", err)
		return nil
	}
	o.record(ctx, run, session.EventReady, map[string]any{"ready": len(ready)}, "")
	o.createLobby(ctx, run)
	return nil
}

// createLobby runs in the loop so no other event observes a half-created lobby.
// Every lobby call made from the loop is bounded by LobbyCallTimeout, since the
// loop processes nothing else while it waits.
func (o *Orchestrator) createLobby(ctx context.Context, run *sessionRun) {
	s := run.session
	s.Transition(session.StatusCreatingLobby, o.clock.Now().UTC())
	if !s.SelfSelect && s.TeamA != nil && s.TeamB != nil {
		o.notify(ctx, teamsFormedNotice(s))
	}

	var teamA, teamB []string
	if s.TeamA != nil {
		teamA = participant.ExternalGameIDs(s.TeamA.Members)
	}
	if s.TeamB != nil {
		teamB = participant.ExternalGameIDs(s.TeamB.Members)
	}
	req := lobby.NewCreateRequest(s.Rounds.CurrentMap(), teamA, teamB, participant.ExternalGameIDs(s.Participants), s.SelfSelect)

	callCtx, cancel := o.lobbyCallContext(ctx)
	handle, err := o.lobbies.Create(callCtx, req)
	cancel()
	if err == nil && handle.LobbyID == "" {
		err = fmt.Errorf("%w: empty lobby id", lobby.ErrCreate)
	}
	if err != nil {
		// Without an id there is nothing of ours to tear down, and a bare destroy
		// would hit whichever lobby another session is running.
		if handle.LobbyID != "" {
			o.destroyLobby(ctx, handle.LobbyID, "teardown after failed lobby creation failed")
		}
		o.failRun(ctx, run, "The lobby could not be created", err)
		return
	}

	delete(o.pending, s.ID)
	if prev, ok := o.active[handle.LobbyID]; ok && prev != run {
		o.logger.WarnContext(ctx, "lobby id reused, dropping previous session",
			"lobby_id", handle.LobbyID,
			"session_id", prev.session.ID,
		)
		prev.stop()
		o.transition(ctx, prev, session.StatusCancelled, session.EventCancelled, nil, "lobby id reused")
	}
	s.ExternalLobbyID = handle.LobbyID
	o.active[handle.LobbyID] = run
	o.transition(ctx, run, session.StatusInProgress, session.EventLobbyCreated, map[string]any{
		"map":             s.Rounds.CurrentMap(),
		"rounds":          s.Rounds.Len(),
		"offline_invites": handle.OfflineInvites,
	}, "")
	o.notify(ctx, sessionCreatedNotice(s, handle, o.catalog.DisplayName(s.Rounds.CurrentMap())))
}

func (o *Orchestrator) OnLobbyStarted(ctx context.Context, lobbyID string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.Orchestrator.OnLobbyStarted", attribute.String("lobby.id", lobbyID))
	defer span.End()

	return o.submit(ctx, func(ctx context.Context) error {
		run, ok := o.lookupLobby(ctx, lobby.CallbackStarted, lobbyID)
		if !ok {
			return nil
		}
		s := run.session
		o.notify(ctx, lobbyStartedNotice(o.catalog.DisplayName(s.Rounds.CurrentMap())))
		o.record(ctx, run, session.EventRoundStarted, map[string]any{"map": s.Rounds.CurrentMap()}, "")
		return nil
	})
}

func (o *Orchestrator) OnLobbyEnded(ctx context.Context, lobbyID string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.Orchestrator.OnLobbyEnded", attribute.String("lobby.id", lobbyID))
	defer span.End()

	return o.submit(ctx, func(ctx context.Context) error {
		run, ok := o.lookupLobby(ctx, lobby.CallbackEnded, lobbyID)
		if !ok {
			return nil
		}
		o.advanceRound(ctx, run, lobbyID)
		return nil
	})
}

func (o *Orchestrator) OnLobbyStale(ctx context.Context, lobbyID string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.Orchestrator.OnLobbyStale", attribute.String("lobby.id", lobbyID))
	defer span.End()

	return o.submit(ctx, func(ctx context.Context) error {
		if _, ok := o.lookupLobby(ctx, lobby.CallbackStale, lobbyID); !ok {
			return nil
		}
		o.notify(ctx, lobbyStaleNotice(lobbyID))
		return nil
	})
}

// lookupLobby resolves a callback's lobby. Callbacks for lobbies that are not in
// the registry are logged and dropped.
func (o *Orchestrator) lookupLobby(ctx context.Context, callback lobby.Callback, lobbyID string) (*sessionRun, bool) {
	run, ok := o.active[lobbyID]
	if !ok {
		o.logger.WarnContext(ctx, "lobby callback ignored",
			"lobby_id", lobbyID,
			"callback", callback,
			"error", ErrUnknownLobby,
		)
		return nil, false
	}
	return run, true
}

func (o *Orchestrator) advanceRound(ctx context.Context, run *sessionRun, lobbyID string) {
	s := run.session
	finished := s.Rounds.Current + 1
	total := s.Rounds.Len()
	next, complete := s.Rounds.Advance()

	nextName := ""
	if !complete {
		nextName = o.catalog.DisplayName(next)
	}
	o.notify(ctx, roundEndedNotice(finished, total, nextName))

	if complete {
		delete(o.active, lobbyID)
		run.stop()
		o.releaseSlot(run)
		callCtx, cancel := o.lobbyCallContext(ctx)
		err := o.lobbies.Destroy(callCtx, lobbyID)
		cancel()
		if err != nil {
			o.logger.ErrorContext(ctx, "destroy finished lobby failed", "session_id", s.ID, "lobby_id", lobbyID, "error", err)
			o.transition(ctx, run, session.StatusFailed, session.EventFailed, nil, err.Error())
			o.notify(ctx, sessionFailedNotice(s, "The lobby could not be closed"))
			return
		}
		o.transition(ctx, run, session.StatusCompleted, session.EventCompleted, map[string]any{"rounds": total}, "")
		o.notify(ctx, sessionCompleteNotice(total))
		return
	}

	callCtx, cancel := o.lobbyCallContext(ctx)
	err := o.lobbies.Update(callCtx, lobbyID, next)
	cancel()
	if err != nil {
		delete(o.active, lobbyID)
		o.destroyLobby(ctx, lobbyID, "teardown after failed round update failed")
		o.failRun(ctx, run, "The next round could not be started", err)
		return
	}
	o.record(ctx, run, session.EventRoundAdvanced, map[string]any{"map": next, "round": s.Rounds.Current}, "")
	o.logger.InfoContext(ctx, "round advanced",
		"session_id", s.ID,
		"lobby_id", lobbyID,
		"round", s.Rounds.Current+1,
		"total", total,
	)
}

// cancelRun ends a session without a lobby quietly. Callers post their own notice.
func (o *Orchestrator) cancelRun(ctx context.Context, run *sessionRun, reason string) {
	run.stop()
	delete(o.pending, run.session.ID)
	o.releaseSlot(run)
	o.transition(ctx, run, session.StatusCancelled, session.EventCancelled, map[string]any{"reason": reason}, "")
}

func (o *Orchestrator) lobbyCallContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.cfg.LobbyCallTimeout)
}

func (o *Orchestrator) destroyLobby(ctx context.Context, lobbyID, failMsg string) {
	callCtx, cancel := o.lobbyCallContext(ctx)
	defer cancel()
	if err := o.lobbies.Destroy(callCtx, lobbyID); err != nil {
		o.logger.WarnContext(ctx, failMsg, "lobby_id", lobbyID, "error", err)
	}
}

// releaseSlot unbinds a finished poll session from its slot. The slot stays
// confirmed: its start time has already been used.
func (o *Orchestrator) releaseSlot(run *sessionRun) {
	if run.slot != nil {
		run.slot.Release(run.session.ID)
	}
}

// failRun marks the session failed, drops it from the registry and posts the one
// failure notice the session gets. The slot it came from stays confirmed but no
// longer points at the session.
func (o *Orchestrator) failRun(ctx context.Context, run *sessionRun, reason string, cause error) {
	s := run.session
	run.stop()
	delete(o.pending, s.ID)
	o.releaseSlot(run)
	if s.ExternalLobbyID != "" && o.active[s.ExternalLobbyID] == run {
		delete(o.active, s.ExternalLobbyID)
	}

	errMsg := reason
	if cause != nil {
		errMsg = cause.Error()
	}
	o.logger.ErrorContext(ctx, "session failed", "session_id", s.ID, "reason", reason, "error", cause)
	o.transition(ctx, run, session.StatusFailed, session.EventFailed, map[string]any{"reason": reason}, errMsg)
	o.notify(ctx, sessionFailedNotice(s, reason))
}
