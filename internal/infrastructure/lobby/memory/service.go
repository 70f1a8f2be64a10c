package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/lobby"
)

type Lobby struct {
	ID      string
	Request lobby.CreateRequest
	MapRef  string
	Updates int
}

// Service is an in-process External Lobby Service. Failures can be injected per
// operation.
type Service struct {
	mu        sync.Mutex
	seq       int
	lobbies   map[string]*Lobby
	destroyed []string
	offline   map[string]struct{}

	failCreate  error
	failUpdate  error
	failDestroy error
}

func NewService() *Service {
	return &Service{
		lobbies: make(map[string]*Lobby),
		offline: make(map[string]struct{}),
	}
}

// SetOffline marks external game ids that will be reported as offline invites.
func (s *Service) SetOffline(gameIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range gameIDs {
		s.offline[id] = struct{}{}
	}
}

func (s *Service) FailCreate(err error) {
	s.mu.Lock()
	s.failCreate = err
	s.mu.Unlock()
}

func (s *Service) FailUpdate(err error) {
	s.mu.Lock()
	s.failUpdate = err
	s.mu.Unlock()
}

func (s *Service) FailDestroy(err error) {
	s.mu.Lock()
	s.failDestroy = err
	s.mu.Unlock()
}

func (s *Service) Create(_ context.Context, req lobby.CreateRequest) (lobby.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failCreate != nil {
		return lobby.Handle{}, fmt.Errorf("%w: %w", lobby.ErrCreate, s.failCreate)
	}
	if req.MapRef == "" {
		return lobby.Handle{}, fmt.Errorf("%w: map reference is required", lobby.ErrCreate)
	}

	s.seq++
	id := "lobby-" + strconv.Itoa(s.seq)
	s.lobbies[id] = &Lobby{ID: id, Request: req, MapRef: req.MapRef}

	var offline []string
	for _, player := range req.Players {
		if _, ok := s.offline[player]; ok {
			offline = append(offline, player)
		}
	}
	return lobby.Handle{LobbyID: id, OfflineInvites: offline}, nil
}

func (s *Service) Update(_ context.Context, lobbyID, mapRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUpdate != nil {
		return fmt.Errorf("%w: %w", lobby.ErrUpdate, s.failUpdate)
	}
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return fmt.Errorf("%w: lobby %s not found", lobby.ErrUpdate, lobbyID)
	}
	l.MapRef = mapRef
	l.Updates++
	return nil
}

// Destroy removes the lobby. Destroying an unknown lobby is a no-op.
func (s *Service) Destroy(_ context.Context, lobbyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failDestroy != nil {
		return fmt.Errorf("%w: %w", lobby.ErrDestroy, s.failDestroy)
	}
	if _, ok := s.lobbies[lobbyID]; ok {
		delete(s.lobbies, lobbyID)
		s.destroyed = append(s.destroyed, lobbyID)
	}
	return nil
}

func (s *Service) Get(lobbyID string) (Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lobbies[lobbyID]
	if !ok {
		return Lobby{}, false
	}
	return *l, true
}

func (s *Service) Destroyed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.destroyed...)
}
