package usecase

import (
	"context"
	"fmt"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/channel"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/identity"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/participant"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/logging"
)

// JoinCollector gathers registered participants who react to a join prompt until a
// headcount is reached.
type JoinCollector struct {
	channel channel.Channel
	roster  identity.Roster
	symbol  string
	logger  *logging.Logger
}

func NewJoinCollector(ch channel.Channel, roster identity.Roster, symbol string, logger *logging.Logger) *JoinCollector {
	if symbol == "" {
		symbol = DefaultReadySymbol
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &JoinCollector{channel: ch, roster: roster, symbol: symbol, logger: logger}
}

// Collect posts prompt and returns the first target registered participants in join
// order. Members without an external game id are told to register and not counted.
func (c *JoinCollector) Collect(ctx context.Context, prompt channel.Message, target int) ([]participant.Participant, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JoinCollector.Collect")
	defer span.End()

	if target < 1 {
		return nil, fmt.Errorf("%w: join headcount must be >= 1", ErrInvalidInput)
	}

	ref, err := c.channel.PostMessage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: post join prompt: %w", channel.ErrUnavailable, err)
	}
	if err := c.channel.AddReaction(ctx, ref, c.symbol); err != nil {
		c.logger.WarnContext(ctx, "add join reaction failed", "message_ref", ref, "error", err)
	}

	observeCtx, stop := context.WithCancel(ctx)
	defer stop()
	stream, err := c.channel.ObserveReactions(observeCtx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: observe join prompt: %w", channel.ErrUnavailable, err)
	}

	joined := make([]participant.Participant, 0, target)
	index := make(map[string]struct{}, target)
	warned := make(map[string]struct{})

	add := func(id string) bool {
		if _, ok := index[id]; ok {
			return false
		}
		resolved, err := c.roster.Resolve(ctx, []string{id})
		if err != nil || len(resolved) == 0 {
			c.logger.WarnContext(ctx, "resolve joining member failed", "participant_id", id, "error", err)
			return false
		}
		p := resolved[0]
		if !p.Registered() {
			if _, done := warned[id]; !done {
				warned[id] = struct{}{}
				if _, err := c.channel.PostMessage(ctx, registrationRequiredNotice(id)); err != nil {
					c.logger.WarnContext(ctx, "post registration notice failed", "participant_id", id, "error", err)
				}
			}
			return false
		}
		index[id] = struct{}{}
		joined = append(joined, p)
		c.logger.InfoContext(ctx, "participant joined session queue", "participant_id", id, "joined", len(joined), "target", target)
		return len(joined) >= target
	}

	remove := func(id string) {
		if _, ok := index[id]; !ok {
			return
		}
		delete(index, id)
		for i, p := range joined {
			if p.ChannelID == id {
				joined = append(joined[:i], joined[i+1:]...)
				break
			}
		}
	}

	current, err := c.channel.CurrentReactors(ctx, ref, c.symbol)
	if err != nil {
		c.logger.WarnContext(ctx, "fetch current join reactors failed", "message_ref", ref, "error", err)
	}
	for _, id := range current {
		if add(id) {
			return joined, nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ErrJoinAbandoned
		case reaction, ok := <-stream:
			if !ok {
				if ctx.Err() != nil {
					return nil, ErrJoinAbandoned
				}
				return nil, fmt.Errorf("%w: join stream closed", channel.ErrUnavailable)
			}
			if reaction.Bot || reaction.Symbol != c.symbol {
				continue
			}
			if !reaction.Added {
				remove(reaction.ParticipantID)
				continue
			}
			if add(reaction.ParticipantID) {
				return joined, nil
			}
		}
	}
}
