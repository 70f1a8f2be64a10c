package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/channel"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/poll"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/round"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/session"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/team"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/clock"
	"go.opentelemetry.io/otel/attribute"
)

const (
	timerReminder   = "reminder"
	timerStartCheck = "start-check"
)

type PollView struct {
	ID         string     `json:"id"`
	MessageRef string     `json:"messageRef"`
	Threshold  int        `json:"threshold"`
	CreatedAt  time.Time  `json:"createdAt"`
	Slots      []SlotView `json:"slots"`
}

type SlotView struct {
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Symbol    string    `json:"symbol"`
	StartAt   time.Time `json:"startAt"`
	Reactors  int       `json:"reactors"`
	Confirmed bool      `json:"confirmed"`
	SessionID string    `json:"sessionId,omitempty"`
	Timers    []string  `json:"timers"`
}

// OpenPoll posts a fresh interest poll and replaces the previous one. Pending
// sessions of the previous poll are cancelled; sessions with a lobby keep running.
func (o *Orchestrator) OpenPoll(ctx context.Context) (PollView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.Orchestrator.OpenPoll")
	defer span.End()

	var out PollView
	err := o.submit(ctx, func(ctx context.Context) error {
		if err := o.openPoll(ctx); err != nil {
			return err
		}
		out = o.pollView()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return PollView{}, err
	}
	return out, nil
}

// CurrentPoll reports the open poll, if any.
func (o *Orchestrator) CurrentPoll(ctx context.Context) (PollView, bool, error) {
	var (
		out  PollView
		open bool
	)
	err := o.submit(ctx, func(context.Context) error {
		if o.poll == nil || !o.poll.Open() {
			return nil
		}
		out, open = o.pollView(), true
		return nil
	})
	return out, open, err
}

func (o *Orchestrator) OnReactionAdd(ctx context.Context, symbol, participantID string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.Orchestrator.OnReactionAdd", attribute.String("poll.symbol", symbol))
	defer span.End()

	return o.submit(ctx, func(ctx context.Context) error {
		return o.onReactionAdd(ctx, symbol, participantID)
	})
}

func (o *Orchestrator) OnReactionRemove(ctx context.Context, symbol, participantID string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.Orchestrator.OnReactionRemove", attribute.String("poll.symbol", symbol))
	defer span.End()

	return o.submit(ctx, func(ctx context.Context) error {
		return o.onReactionRemove(ctx, symbol, participantID)
	})
}

func (o *Orchestrator) openPoll(ctx context.Context) error {
	now := o.clock.Now().UTC()
	pollID, err := o.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate poll id: %w", err)
	}
	options := poll.WeekdayOptions(o.cfg.SlotDays, now, o.cfg.StartHour, o.cfg.StartMinute)
	next, err := poll.New(pollID, now, o.cfg.Threshold, options, o.clock)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	ref, err := o.channel.PostMessage(ctx, pollNotice(next))
	if err != nil {
		return fmt.Errorf("%w: post poll: %w", channel.ErrUnavailable, err)
	}
	for _, slot := range next.Slots {
		if err := o.channel.AddReaction(ctx, ref, slot.Symbol); err != nil {
			return fmt.Errorf("%w: add poll reaction %s: %w", channel.ErrUnavailable, slot.Symbol, err)
		}
	}

	pumpCtx, stopPump := context.WithCancel(o.loopCtx)
	stream, err := o.channel.ObserveReactions(pumpCtx, ref)
	if err != nil {
		stopPump()
		return fmt.Errorf("%w: observe poll reactions: %w", channel.ErrUnavailable, err)
	}

	o.closePoll(ctx)
	next.MessageRef = ref
	o.poll = next
	o.stopPump = stopPump
	go o.pumpReactions(pumpCtx, next, stream)

	o.logger.InfoContext(ctx, "interest poll opened",
		"poll_id", next.ID,
		"message_ref", ref,
		"slots", len(next.Slots),
		"threshold", next.Threshold,
	)
	return nil
}

func (o *Orchestrator) closePoll(ctx context.Context) {
	if o.poll == nil {
		return
	}
	if o.stopPump != nil {
		o.stopPump()
		o.stopPump = nil
	}
	prev := o.poll
	for _, slot := range prev.Slots {
		if run, ok := o.pending[slot.SessionID]; ok && run.slot == slot {
			o.cancelRun(ctx, run, "interest poll replaced")
		}
	}
	prev.Close(o.clock.Now().UTC())
	o.poll = nil
	o.logger.InfoContext(ctx, "interest poll closed", "poll_id", prev.ID)
}

// pumpReactions forwards observed reactions of p to the loop until ctx ends.
func (o *Orchestrator) pumpReactions(ctx context.Context, p *poll.Poll, stream <-chan channel.Reaction) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-stream:
			if !ok {
				o.logger.Warn("poll reaction stream closed", "poll_id", p.ID)
				return
			}
			if r.Bot || r.ParticipantID == "" {
				continue
			}
			o.enqueue(func(ctx context.Context) error {
				if o.poll != p {
					return nil
				}
				if r.Added {
					return o.onReactionAdd(ctx, r.Symbol, r.ParticipantID)
				}
				return o.onReactionRemove(ctx, r.Symbol, r.ParticipantID)
			})
		}
	}
}

func (o *Orchestrator) openSlot(symbol, participantID string) (*poll.Slot, error) {
	if participantID == "" {
		return nil, fmt.Errorf("%w: participant id is required", ErrInvalidInput)
	}
	if o.poll == nil || !o.poll.Open() {
		return nil, fmt.Errorf("%w: no open interest poll", ErrNotFound)
	}
	slot, ok := o.poll.SlotBySymbol(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: unknown poll symbol %q", ErrInvalidInput, symbol)
	}
	return slot, nil
}

func (o *Orchestrator) onReactionAdd(ctx context.Context, symbol, participantID string) error {
	slot, err := o.openSlot(symbol, participantID)
	if err != nil {
		return err
	}
	if !slot.AddReactor(participantID) {
		return nil
	}
	o.logger.DebugContext(ctx, "poll reaction added", "slot", slot.Key, "participant_id", participantID, "count", slot.Count())

	if slot.Confirmed || slot.Count() < o.poll.Threshold {
		return nil
	}
	return o.confirmSlot(ctx, o.poll, slot)
}

func (o *Orchestrator) onReactionRemove(ctx context.Context, symbol, participantID string) error {
	slot, err := o.openSlot(symbol, participantID)
	if err != nil {
		return err
	}
	if !slot.RemoveReactor(participantID) {
		return nil
	}
	o.logger.DebugContext(ctx, "poll reaction removed", "slot", slot.Key, "participant_id", participantID, "count", slot.Count())

	if !slot.Confirmed || slot.Count() >= o.poll.Threshold {
		return nil
	}
	if slot.SessionID == "" {
		o.logger.InfoContext(ctx, "slot below threshold after its session ended", "slot", slot.Key)
		return nil
	}
	run, ok := o.pending[slot.SessionID]
	if !ok {
		o.logger.InfoContext(ctx, "slot below threshold after lobby creation, session kept",
			"slot", slot.Key,
			"session_id", slot.SessionID,
		)
		return nil
	}

	missing := o.poll.Threshold - slot.Count()
	o.cancelRun(ctx, run, "not enough players")
	if eventID := slot.Revert(o.clock); eventID != "" && o.calendar != nil {
		if err := o.calendar.DeleteEvent(ctx, eventID); err != nil {
			o.logger.WarnContext(ctx, "delete calendar event failed", "slot", slot.Key, "event_id", eventID, "error", err)
		}
	}
	o.notify(ctx, slotCancelledNotice(slot, missing))
	return nil
}

// confirmSlot turns a slot that reached the threshold into a scheduled session. A
// slot whose reactors cannot be split into two teams stays unconfirmed.
func (o *Orchestrator) confirmSlot(ctx context.Context, p *poll.Poll, slot *poll.Slot) error {
	participants, err := o.roster.Resolve(ctx, slot.Reactors())
	if err != nil {
		return fmt.Errorf("%w: resolve slot roster: %w", ErrDependencyUnavailable, err)
	}
	formation, ok := team.FormTeams(participants, team.ByAffiliationField, o.cfg.MinPerTeam)
	if !ok {
		o.logger.InfoContext(ctx, "slot reached threshold but teams cannot be formed",
			"slot", slot.Key,
			"reactors", slot.Count(),
			"resolved", len(participants),
		)
		return nil
	}
	rounds, err := round.Expand(o.cfg.PollMatchSpec, o.cfg.PollRoundsPerMap, o.catalog)
	if err != nil {
		return err
	}

	s, err := o.newSession(session.OriginPoll, o.cfg.PollMatchSpec, o.cfg.PollRoundsPerMap, o.cfg.MinPerTeam, rounds, session.StatusScheduled)
	if err != nil {
		return err
	}
	s.SlotKey = slot.Key
	s.StartAt = slot.StartAt
	applyFormation(s, formation)

	epoch := slot.Confirm(s.ID)
	run := &sessionRun{session: s, poll: p, slot: slot, timers: clock.NewSet(o.clock)}
	o.pending[s.ID] = run
	o.record(ctx, run, session.EventCreated, map[string]any{
		"slot":      slot.Key,
		"formation": string(formation.Kind),
		"reactors":  slot.Count(),
	}, "")

	if o.calendar != nil {
		eventID, err := o.calendar.CreateEvent(ctx, channel.CalendarEvent{
			Name:        fmt.Sprintf("Scrim %s", slot.Label),
			Description: fmt.Sprintf("%d players confirmed", len(s.Participants)),
			StartAt:     slot.StartAt,
			EndAt:       slot.StartAt.Add(2 * time.Hour),
		})
		if err != nil {
			o.logger.WarnContext(ctx, "create calendar event failed", "slot", slot.Key, "error", err)
		} else {
			slot.CalendarEventID = eventID
		}
	}
	o.notify(ctx, slotConfirmedNotice(slot, s))

	now := o.clock.Now()
	if o.cfg.ReminderLead > 0 {
		if remindAt := slot.StartAt.Add(-o.cfg.ReminderLead); remindAt.After(now) {
			slot.Timers.Schedule(timerReminder, remindAt, func() {
				o.enqueue(func(ctx context.Context) error { return o.onReminder(ctx, p, slot, epoch) })
			})
		}
	}
	slot.Timers.Schedule(timerStartCheck, slot.StartAt, func() {
		o.enqueue(func(ctx context.Context) error { return o.onStartCheck(ctx, p, slot, epoch) })
	})

	o.logger.InfoContext(ctx, "slot confirmed",
		"session_id", s.ID,
		"slot", slot.Key,
		"participants", len(s.Participants),
		"formation", formation.Kind,
		"start_at", slot.StartAt,
	)
	return nil
}

func (o *Orchestrator) slotCurrent(p *poll.Poll, slot *poll.Slot, epoch uint64) bool {
	return o.poll == p && p.Open() && slot.Confirmed && slot.Epoch == epoch
}

func (o *Orchestrator) onReminder(ctx context.Context, p *poll.Poll, slot *poll.Slot, epoch uint64) error {
	if !o.slotCurrent(p, slot, epoch) {
		return nil
	}
	run, ok := o.pending[slot.SessionID]
	if !ok {
		return nil
	}
	o.notify(ctx, reminderNotice(slot, run.session, o.cfg.ReminderLead))
	return nil
}

// onStartCheck re-reads the slot's reactors at start time so people who left after
// confirmation are not waited on.
func (o *Orchestrator) onStartCheck(ctx context.Context, p *poll.Poll, slot *poll.Slot, epoch uint64) error {
	if !o.slotCurrent(p, slot, epoch) {
		return nil
	}
	run, ok := o.pending[slot.SessionID]
	if !ok || run.session.Status != session.StatusScheduled {
		return nil
	}

	participants, err := o.roster.Resolve(ctx, slot.Reactors())
	if err != nil {
		o.failRun(ctx, run, "player details could not be loaded at start time", err)
		return nil
	}
	formation, ok := team.FormTeams(participants, team.ByAffiliationField, o.cfg.MinPerTeam)
	if !ok {
		o.failRun(ctx, run, "not enough registered players at start time", nil)
		return nil
	}
	applyFormation(run.session, formation)
	return o.beginReadiness(ctx, run)
}

func applyFormation(s *session.Session, f team.Formation) {
	a, b := f.TeamA, f.TeamB
	s.Participants = f.Participants()
	s.TeamA = &a
	s.TeamB = &b
	s.SelfSelect = f.Kind == team.KindMixed
}

func (o *Orchestrator) pollView() PollView {
	p := o.poll
	view := PollView{
		ID:         p.ID,
		MessageRef: p.MessageRef,
		Threshold:  p.Threshold,
		CreatedAt:  p.CreatedAt,
		Slots:      make([]SlotView, 0, len(p.Slots)),
	}
	for _, slot := range p.Slots {
		view.Slots = append(view.Slots, SlotView{
			Key:       slot.Key,
			Label:     slot.Label,
			Symbol:    slot.Symbol,
			StartAt:   slot.StartAt,
			Reactors:  slot.Count(),
			Confirmed: slot.Confirmed,
			SessionID: slot.SessionID,
			Timers:    slot.Timers.Pending(),
		})
	}
	return view
}
