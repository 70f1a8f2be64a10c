package httpapi

import (
	"context"
	"net/http"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/lobby"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (h *Handler) LobbyStarted(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.LobbyStarted", attribute.String("lobby.callback", string(lobby.CallbackStarted)))
	defer span.End()

	if err := h.requireScheduler(); err != nil {
		writeError(ctx, w, err)
		return
	}
	h.handleLobbyCallback(w, r.WithContext(ctx), lobby.CallbackStarted, h.scheduler.OnLobbyStarted)
}

func (h *Handler) LobbyEnded(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.LobbyEnded", attribute.String("lobby.callback", string(lobby.CallbackEnded)))
	defer span.End()

	if err := h.requireScheduler(); err != nil {
		writeError(ctx, w, err)
		return
	}
	h.handleLobbyCallback(w, r.WithContext(ctx), lobby.CallbackEnded, h.scheduler.OnLobbyEnded)
}

func (h *Handler) LobbyStale(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.LobbyStale", attribute.String("lobby.callback", string(lobby.CallbackStale)))
	defer span.End()

	if err := h.requireScheduler(); err != nil {
		writeError(ctx, w, err)
		return
	}
	h.handleLobbyCallback(w, r.WithContext(ctx), lobby.CallbackStale, h.scheduler.OnLobbyStale)
}

// handleLobbyCallback forwards a lobby service callback. Callbacks for unknown
// lobbies are accepted; the orchestrator logs and drops them.
func (h *Handler) handleLobbyCallback(w http.ResponseWriter, r *http.Request, callback lobby.Callback, forward func(context.Context, string) error) {
	ctx := r.Context()

	var req lobbyCallbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("lobby.id", string(req.LobbyID)))

	if err := forward(ctx, string(req.LobbyID)); err != nil {
		h.logger.WarnContext(ctx, "lobby callback failed", "callback", string(callback), "lobby_id", string(req.LobbyID), "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusAccepted, map[string]string{
		"callback": string(callback),
		"lobby_id": string(req.LobbyID),
	})
}
