package usecase

import (
	"context"
	"fmt"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/channel"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/participant"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/logging"
)

const DefaultReadySymbol = "👍"

// ReadySet maps channel id to external game id for every participant who signalled ready.
type ReadySet map[string]string

// ReadinessCoordinator waits until every listed participant reacted with the ready
// symbol on a prompt message. It imposes no timeout; callers cancel the context.
type ReadinessCoordinator struct {
	channel channel.Channel
	symbol  string
	logger  *logging.Logger
}

func NewReadinessCoordinator(ch channel.Channel, symbol string, logger *logging.Logger) *ReadinessCoordinator {
	if symbol == "" {
		symbol = DefaultReadySymbol
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ReadinessCoordinator{channel: ch, symbol: symbol, logger: logger}
}

func (r *ReadinessCoordinator) Symbol() string {
	return r.symbol
}

// AwaitReady posts prompt and blocks until all participants are ready or ctx is
// done. Reactions from anyone outside participants are ignored. On cancellation it
// returns an empty set and ErrReadinessAbandoned.
func (r *ReadinessCoordinator) AwaitReady(ctx context.Context, participants []participant.Participant, prompt channel.Message) (ReadySet, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ReadinessCoordinator.AwaitReady")
	defer span.End()

	expected := make(map[string]string, len(participants))
	for _, p := range participants {
		expected[p.ChannelID] = p.ExternalGameID
	}
	ready := make(ReadySet, len(expected))
	if len(expected) == 0 {
		return ready, nil
	}

	ref, err := r.channel.PostMessage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: post readiness prompt: %w", channel.ErrUnavailable, err)
	}
	if err := r.channel.AddReaction(ctx, ref, r.symbol); err != nil {
		r.logger.WarnContext(ctx, "add ready reaction failed", "message_ref", ref, "error", err)
	}

	observeCtx, stop := context.WithCancel(ctx)
	defer stop()
	stream, err := r.channel.ObserveReactions(observeCtx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: observe readiness prompt: %w", channel.ErrUnavailable, err)
	}

	mark := func(id string) bool {
		gameID, ok := expected[id]
		if !ok {
			return false
		}
		ready[id] = gameID
		return len(ready) == len(expected)
	}

	// Reactions that landed before the stream was attached.
	current, err := r.channel.CurrentReactors(ctx, ref, r.symbol)
	if err != nil {
		r.logger.WarnContext(ctx, "fetch current ready reactors failed", "message_ref", ref, "error", err)
	}
	for _, id := range current {
		if mark(id) {
			return ready, nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ReadySet{}, ErrReadinessAbandoned
		case reaction, ok := <-stream:
			if !ok {
				if ctx.Err() != nil {
					return ReadySet{}, ErrReadinessAbandoned
				}
				return nil, fmt.Errorf("%w: readiness stream closed", channel.ErrUnavailable)
			}
			if !reaction.Added || reaction.Bot || reaction.Symbol != r.symbol {
				continue
			}
			if mark(reaction.ParticipantID) {
				r.logger.InfoContext(ctx, "all participants ready", "message_ref", ref, "count", len(ready))
				return ready, nil
			}
		}
	}
}
