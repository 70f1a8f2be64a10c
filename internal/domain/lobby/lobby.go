package lobby

import (
	"context"
	"errors"
)

var (
	ErrCreate  = errors.New("lobby create failed")
	ErrUpdate  = errors.New("lobby update failed")
	ErrDestroy = errors.New("lobby destroy failed")
)

// CreateRequest is the lobby creation payload. Team and player lists hold
// external game ids. Exactly one of MinReadyTotal and MinReadyPerTeam is set.
type CreateRequest struct {
	MapRef          string
	TeamA           []string
	TeamB           []string
	Players         []string
	MinReadyTotal   int
	MinReadyPerTeam int
}

// NewCreateRequest applies the ready requirement rule: a self-selecting lobby waits
// for every player, an assigned one for half of them per team.
func NewCreateRequest(mapRef string, teamA, teamB, players []string, selfSelect bool) CreateRequest {
	req := CreateRequest{
		MapRef:  mapRef,
		Players: append([]string(nil), players...),
	}
	if selfSelect {
		req.MinReadyTotal = len(players)
		return req
	}
	req.TeamA = append([]string(nil), teamA...)
	req.TeamB = append([]string(nil), teamB...)
	req.MinReadyPerTeam = len(players) / 2
	return req
}

type Handle struct {
	LobbyID        string
	OfflineInvites []string
}

// Service is the external lobby service.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (Handle, error)
	Update(ctx context.Context, lobbyID, mapRef string) error
	Destroy(ctx context.Context, lobbyID string) error
}

type Callback string

const (
	CallbackStarted Callback = "started"
	CallbackEnded   Callback = "ended"
	CallbackStale   Callback = "stale"
)
