package httpapi

import (
	"fmt"
	"net/http"

	"github.com/riskibarqy/scrim-scheduler/internal/usecase"
)

func (h *Handler) RunOpenPollJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunOpenPollJob")
	defer span.End()

	if err := h.requireScheduler(); err != nil {
		writeError(ctx, w, err)
		return
	}

	view, err := h.scheduler.OpenPoll(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "run open poll job failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	h.logger.InfoContext(ctx, "poll opened by job", "poll_id", view.ID, "slots", len(view.Slots))
	writeSuccess(ctx, w, http.StatusOK, pollToDTO(view))
}

func (h *Handler) GetPoll(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetPoll")
	defer span.End()

	if err := h.requireScheduler(); err != nil {
		writeError(ctx, w, err)
		return
	}

	view, open, err := h.scheduler.CurrentPoll(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if !open {
		writeError(ctx, w, fmt.Errorf("%w: no open poll", usecase.ErrNotFound))
		return
	}

	writeSuccess(ctx, w, http.StatusOK, pollToDTO(view))
}
