package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalToken string) {
	mux.Handle("POST /v1/internal/jobs/open-poll", RequireInternalToken(internalToken, http.HandlerFunc(handler.RunOpenPollJob)))
	mux.Handle("GET /v1/internal/poll", RequireInternalToken(internalToken, http.HandlerFunc(handler.GetPoll)))
}

func registerInternalChannelRoutes(mux *http.ServeMux, handler *Handler, internalToken string) {
	// Reactions pushed by the chat relay.
	mux.Handle("POST /v1/internal/channel/reactions", RequireInternalToken(internalToken, http.HandlerFunc(handler.IngestReaction)))
}

func registerInternalSessionRoutes(mux *http.ServeMux, handler *Handler, internalToken string) {
	mux.Handle("POST /v1/internal/sessions", RequireInternalToken(internalToken, http.HandlerFunc(handler.CreateSession)))
	mux.Handle("GET /v1/internal/sessions", RequireInternalToken(internalToken, http.HandlerFunc(handler.ListSessions)))
	mux.Handle("GET /v1/internal/sessions/{sessionID}/events", RequireInternalToken(internalToken, http.HandlerFunc(handler.ListSessionEvents)))
}

func registerInternalLobbyRoutes(mux *http.ServeMux, handler *Handler, internalToken string) {
	mux.Handle("POST /v1/internal/lobby/started", RequireInternalToken(internalToken, http.HandlerFunc(handler.LobbyStarted)))
	mux.Handle("POST /v1/internal/lobby/ended", RequireInternalToken(internalToken, http.HandlerFunc(handler.LobbyEnded)))
	mux.Handle("POST /v1/internal/lobby/stale", RequireInternalToken(internalToken, http.HandlerFunc(handler.LobbyStale)))
}
