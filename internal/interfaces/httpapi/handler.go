package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/channel"
	"github.com/riskibarqy/scrim-scheduler/internal/domain/session"
	"github.com/riskibarqy/scrim-scheduler/internal/platform/logging"
	"github.com/riskibarqy/scrim-scheduler/internal/usecase"
)

const maxRequestBody = 1 << 20

var strictJSON = sonic.Config{DisallowUnknownFields: true}.Froze()

// Scheduler is the orchestrator surface the HTTP layer drives.
type Scheduler interface {
	OpenPoll(ctx context.Context) (usecase.PollView, error)
	CurrentPoll(ctx context.Context) (usecase.PollView, bool, error)
	RequestManualSession(ctx context.Context, req usecase.ManualSessionRequest) (session.Session, error)
	ActiveSessions(ctx context.Context) ([]session.Session, error)
	SessionEvents(ctx context.Context, sessionID string) ([]session.Event, error)
	OnLobbyStarted(ctx context.Context, lobbyID string) error
	OnLobbyEnded(ctx context.Context, lobbyID string) error
	OnLobbyStale(ctx context.Context, lobbyID string) error
}

// ReactionSink accepts reactions pushed by the chat relay.
type ReactionSink interface {
	Ingest(r channel.Reaction) bool
}

type Handler struct {
	scheduler Scheduler
	reactions ReactionSink
	logger    *logging.Logger
	validator *validator.Validate
}

func NewHandler(scheduler Scheduler, reactions ReactionSink, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		scheduler: scheduler,
		reactions: reactions,
		logger:    logger.Named("httpapi"),
		validator: validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

// decodeJSON reads a strict JSON body. An empty body leaves target untouched.
func decodeJSON(r *http.Request, target any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return fmt.Errorf("%w: read request body: %v", usecase.ErrInvalidInput, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := strictJSON.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

func (h *Handler) requireScheduler() error {
	if h.scheduler == nil {
		return fmt.Errorf("%w: scheduler is not configured", usecase.ErrDependencyUnavailable)
	}
	return nil
}
