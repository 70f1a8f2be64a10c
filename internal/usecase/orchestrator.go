package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/channel"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/identity"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/lobby"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/poll"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/round"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/session"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/clock"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/id"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/logging"
)

type OrchestratorConfig struct {
	SlotDays         []time.Weekday
	StartHour        int
	StartMinute      int
	Threshold        int
	ReminderLead     time.Duration
	MinPerTeam       int
	PollMatchSpec    string
	PollRoundsPerMap int
	ReadyTimeout     time.Duration
	JoinTimeout      time.Duration
	JoinMinHeadcount int
	// LobbyCallTimeout bounds one lobby service call, retries included.
	LobbyCallTimeout time.Duration
	ReadySymbol      string
	QueueSize        int
}

type OrchestratorDeps struct {
	Channel  channel.Channel
	Calendar channel.EventScheduler
	Lobbies  lobby.Service
	Roster   identity.Roster
	Journal  session.Repository
	Catalog  *round.Catalog
	Clock    clock.Clock
	IDs      id.Generator
	Pool     *ants.Pool
	Logger   *logging.Logger
}

type command struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// sessionRun is the orchestrator's handle on one session: its slot binding, its own
// timers and the cancel func of whatever wait is in flight.
type sessionRun struct {
	session *session.Session
	poll    *poll.Poll
	slot    *poll.Slot
	timers  *clock.Set
	cancel  context.CancelFunc
}

func (r *sessionRun) stopWait() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *sessionRun) stop() {
	r.stopWait()
	r.timers.CancelAll()
}

// Orchestrator owns the interest poll, the session registry and every timer. All
// state is mutated by a single loop goroutine that handles commands in arrival order;
// public methods, timers, the reaction pump and background waits only submit
// commands to it.
type Orchestrator struct {
	cfg       OrchestratorConfig
	channel   channel.Channel
	calendar  channel.EventScheduler
	lobbies   lobby.Service
	roster    identity.Roster
	journal   session.Repository
	catalog   *round.Catalog
	clock     clock.Clock
	ids       id.Generator
	pool      *ants.Pool
	ownsPool  bool
	readiness *ReadinessCoordinator
	joins     *JoinCollector
	logger    *logging.Logger

	commands chan command
	stopped  chan struct{}
	running  atomic.Bool

	// Loop-owned.
	loopCtx  context.Context
	poll     *poll.Poll
	stopPump context.CancelFunc
	pending  map[string]*sessionRun
	active   map[string]*sessionRun
}

func NewOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig) (*Orchestrator, error) {
	if deps.Channel == nil || deps.Lobbies == nil || deps.Roster == nil {
		return nil, fmt.Errorf("%w: channel, lobby service and roster are required", ErrInvalidInput)
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.IDs == nil {
		deps.IDs = id.NewUUIDGenerator()
	}
	if deps.Catalog == nil {
		deps.Catalog = round.NewCatalog(nil)
	}

	cfg = normalizeOrchestratorConfig(cfg)
	if len(cfg.SlotDays) == 0 {
		return nil, fmt.Errorf("%w: at least one poll slot is required", ErrInvalidInput)
	}
	if _, err := round.Expand(cfg.PollMatchSpec, cfg.PollRoundsPerMap, deps.Catalog); err != nil {
		return nil, fmt.Errorf("poll match spec: %w", err)
	}

	o := &Orchestrator{
		cfg:      cfg,
		channel:  deps.Channel,
		calendar: deps.Calendar,
		lobbies:  deps.Lobbies,
		roster:   deps.Roster,
		journal:  deps.Journal,
		catalog:  deps.Catalog,
		clock:    deps.Clock,
		ids:      deps.IDs,
		pool:     deps.Pool,
		logger:   deps.Logger.Named("orchestrator"),
		commands: make(chan command, cfg.QueueSize),
		stopped:  make(chan struct{}),
		pending:  make(map[string]*sessionRun),
		active:   make(map[string]*sessionRun),
	}
	if o.pool == nil {
		pool, err := ants.NewPool(16, ants.WithNonblocking(true))
		if err != nil {
			return nil, fmt.Errorf("create worker pool: %w", err)
		}
		o.pool = pool
		o.ownsPool = true
	}
	o.readiness = NewReadinessCoordinator(deps.Channel, cfg.ReadySymbol, deps.Logger)
	o.joins = NewJoinCollector(deps.Channel, deps.Roster, cfg.ReadySymbol, deps.Logger)
	return o, nil
}

func normalizeOrchestratorConfig(cfg OrchestratorConfig) OrchestratorConfig {
	if cfg.Threshold < 1 {
		cfg.Threshold = 8
	}
	if cfg.MinPerTeam < 1 {
		cfg.MinPerTeam = 4
	}
	if cfg.PollMatchSpec == "" {
		cfg.PollMatchSpec = "4-All"
	}
	if cfg.PollRoundsPerMap < 1 {
		cfg.PollRoundsPerMap = 3
	}
	if cfg.ReadySymbol == "" {
		cfg.ReadySymbol = DefaultReadySymbol
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 256
	}
	if cfg.LobbyCallTimeout <= 0 {
		cfg.LobbyCallTimeout = 20 * time.Second
	}
	return cfg
}

// Run processes commands until ctx is cancelled. It must be called exactly once.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return fmt.Errorf("orchestrator already running")
	}
	o.loopCtx = ctx
	defer o.shutdown()

	o.logger.InfoContext(ctx, "orchestrator loop started")
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator loop stopping")
			return nil
		case cmd := <-o.commands:
			cmdCtx := cmd.ctx
			if cmdCtx == nil {
				cmdCtx = ctx
			}
			err := o.exec(cmdCtx, cmd.fn)
			if cmd.done != nil {
				cmd.done <- err
			} else if err != nil {
				o.logger.WarnContext(cmdCtx, "orchestrator event failed", "error", err)
			}
		}
	}
}

func (o *Orchestrator) exec(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.ErrorContext(ctx, "orchestrator event panicked", "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("orchestrator event panicked: %v", rec)
		}
	}()
	return fn(ctx)
}

func (o *Orchestrator) shutdown() {
	close(o.stopped)
	if o.stopPump != nil {
		o.stopPump()
	}
	if o.poll != nil {
		o.poll.Close(o.clock.Now())
	}
	for _, run := range o.pending {
		run.stop()
	}
	for _, run := range o.active {
		run.stop()
	}
	if o.ownsPool {
		o.pool.Release()
	}
}

// submit runs fn on the loop and waits for its result. The loop sees the caller's
// values but not its cancellation.
func (o *Orchestrator) submit(ctx context.Context, fn func(context.Context) error) error {
	cmd := command{ctx: context.WithoutCancel(ctx), fn: fn, done: make(chan error, 1)}
	select {
	case o.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-o.stopped:
		return ErrOrchestratorStopped
	}

	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-o.stopped:
		return ErrOrchestratorStopped
	}
}

// enqueue hands fn to the loop without waiting. Loop handlers must not call it.
func (o *Orchestrator) enqueue(fn func(context.Context) error) {
	select {
	case o.commands <- command{fn: fn}:
	case <-o.stopped:
	}
}

// Sync returns once every command queued before it has been handled.
func (o *Orchestrator) Sync(ctx context.Context) error {
	return o.submit(ctx, func(context.Context) error { return nil })
}

// ActiveSessions lists every session that has not reached a terminal state.
func (o *Orchestrator) ActiveSessions(ctx context.Context) ([]session.Session, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.Orchestrator.ActiveSessions")
	defer span.End()

	var out []session.Session
	err := o.submit(ctx, func(context.Context) error {
		out = make([]session.Session, 0, len(o.pending)+len(o.active))
		for _, run := range o.pending {
			out = append(out, run.session.Snapshot())
		}
		for _, run := range o.active {
			out = append(out, run.session.Snapshot())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (o *Orchestrator) SessionEvents(ctx context.Context, sessionID string) ([]session.Event, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.Orchestrator.SessionEvents")
	defer span.End()

	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if o.journal == nil {
		return nil, fmt.Errorf("%w: session journal is not configured", ErrDependencyUnavailable)
	}
	events, err := o.journal.ListEvents(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session events: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: no events for session %s", ErrNotFound, sessionID)
	}
	return events, nil
}

func (o *Orchestrator) newSession(origin session.Origin, matchSpec string, roundsPerMap, perTeam int, rounds []string, status session.Status) (*session.Session, error) {
	sessionID, err := o.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	now := o.clock.Now().UTC()
	return &session.Session{
		ID:             sessionID,
		Origin:         origin,
		MatchSpec:      matchSpec,
		RoundsPerMap:   roundsPerMap,
		PlayersPerTeam: perTeam,
		Rounds:         round.NewSequence(rounds),
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (o *Orchestrator) transition(ctx context.Context, run *sessionRun, status session.Status, event session.EventType, payload map[string]any, errMsg string) {
	run.session.Transition(status, o.clock.Now().UTC())
	o.logger.InfoContext(ctx, "session transition",
		"session_id", run.session.ID,
		"status", status,
		"lobby_id", run.session.ExternalLobbyID,
	)
	o.record(ctx, run, event, payload, errMsg)
}

// record appends a journal event. Journal failures are logged and never change the
// session's fate.
func (o *Orchestrator) record(ctx context.Context, run *sessionRun, eventType session.EventType, payload map[string]any, errMsg string) {
	if o.journal == nil {
		return
	}
	eventID, err := o.ids.NewID()
	if err != nil {
		o.logger.WarnContext(ctx, "generate journal event id failed", "session_id", run.session.ID, "error", err)
		return
	}
	traceID, spanID := traceIDs(ctx)
	event := session.Event{
		EventID:      eventID,
		SessionID:    run.session.ID,
		Type:         eventType,
		Status:       run.session.Status,
		LobbyID:      run.session.ExternalLobbyID,
		RoundIndex:   run.session.Rounds.Current,
		Payload:      payload,
		ErrorMessage: errMsg,
		OccurredAt:   o.clock.Now().UTC(),
		TraceID:      traceID,
		SpanID:       spanID,
	}
	if err := o.journal.AppendEvent(ctx, event); err != nil {
		o.logger.WarnContext(ctx, "append session event failed",
			"session_id", event.SessionID,
			"event_type", event.Type,
			"error", err,
		)
	}
}

func (o *Orchestrator) notify(ctx context.Context, msg channel.Message) {
	if _, err := o.channel.PostMessage(ctx, msg); err != nil {
		o.logger.WarnContext(ctx, "post notice failed", "title", msg.Title, "error", err)
	}
}
