package httpapi

import (
	"net/http"
	"strings"

	"github.com/riskibarqy/scrim-scheduler/internal/usecase"
	"go.opentelemetry.io/otel/attribute"
)

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateSession")
	defer span.End()

	if err := h.requireScheduler(); err != nil {
		writeError(ctx, w, err)
		return
	}

	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	req.MatchSpec = strings.TrimSpace(req.MatchSpec)
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	created, err := h.scheduler.RequestManualSession(ctx, usecase.ManualSessionRequest{
		MatchSpec:      req.MatchSpec,
		RoundsPerMap:   req.RoundsPerMap,
		PlayersPerTeam: req.PlayersPerTeam,
		SelfSelect:     req.SelfSelect,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "manual session request failed", "match_spec", req.MatchSpec, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusAccepted, sessionToDTO(created))
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListSessions")
	defer span.End()

	if err := h.requireScheduler(); err != nil {
		writeError(ctx, w, err)
		return
	}

	items, err := h.scheduler.ActiveSessions(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	out := make([]sessionDTO, 0, len(items))
	for _, item := range items {
		out = append(out, sessionToDTO(item))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) ListSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.PathValue("sessionID"))
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListSessionEvents", attribute.String("session.id", sessionID))
	defer span.End()

	if err := h.requireScheduler(); err != nil {
		writeError(ctx, w, err)
		return
	}

	events, err := h.scheduler.SessionEvents(ctx, sessionID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	out := make([]sessionEventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, sessionEventToDTO(event))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}
