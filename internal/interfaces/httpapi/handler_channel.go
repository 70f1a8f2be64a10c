package httpapi

import (
	"fmt"
	"net/http"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/channel"
	"github.com/riskibarqy/scrim-scheduler/internal/usecase"
)

// IngestReaction applies a reaction change reported by the chat relay. Repeated
// adds and removes are accepted and reported as unchanged.
func (h *Handler) IngestReaction(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.IngestReaction")
	defer span.End()

	if h.reactions == nil {
		writeError(ctx, w, fmt.Errorf("%w: reaction ingestion is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	var req reactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	changed := h.reactions.Ingest(channel.Reaction{
		MessageRef:    req.MessageRef,
		Symbol:        req.Symbol,
		ParticipantID: req.ParticipantID,
		Added:         req.Added,
		Bot:           req.Bot,
	})
	h.logger.DebugContext(ctx, "reaction ingested",
		"message_ref", req.MessageRef,
		"symbol", req.Symbol,
		"participant_id", req.ParticipantID,
		"added", req.Added,
		"changed", changed,
	)

	writeSuccess(ctx, w, http.StatusAccepted, map[string]bool{"changed": changed})
}
