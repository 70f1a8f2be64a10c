package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	ErrUnknownLobby        = errors.New("unknown lobby callback")
	ErrReadinessAbandoned  = errors.New("readiness abandoned")
	ErrJoinAbandoned       = errors.New("join collection abandoned")
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
