package room

import (
	"context"
	"math"
	"time"
)

const (
	PlayerEventPlay  = "play"
	PlayerEventPause = "pause"
	PlayerEventSeek  = "seek"
	PlayerEventState = "state"
)

// syncState is the authoritative position at the current instant. Must be
// called with the room locked.
func (s *service) syncState(r *roomState) SyncState {
	now := s.now()
	position := r.player.currentTime
	if r.player.isPlaying && !r.player.updatedAt.IsZero() {
		if elapsed := now.Sub(r.player.updatedAt).Seconds(); elapsed > 0 {
			position += elapsed
		}
	}

	return SyncState{
		CurrentTime: position,
		IsPlaying:   r.player.isPlaying,
		SentAt:      now.UnixMilli(),
	}
}

// resetPlayback rewinds to a paused start. Every media change goes
// through here.
func (s *service) resetPlayback(r *roomState) {
	r.player = playerState{updatedAt: s.now()}
	s.stopHeartbeat(r)
}

func sanitizeTime(t float64) float64 {
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return 0
	}
	return t
}

type UpdatePlayerStateParams struct {
	ConnId      string
	Event       string
	CurrentTime float64
	// IsPlaying is read only for PlayerEventState; nil means paused.
	IsPlaying *bool
}

type UpdatePlayerStateResponse struct {
	State SyncState
}

// UpdatePlayerState applies a host playback event and relays the new state
// to every other member. Events from anyone but the host are rejected.
func (s *service) UpdatePlayerState(ctx context.Context, params *UpdatePlayerStateParams) (UpdatePlayerStateResponse, error) {
	r, err := s.lockMemberRoom(params.ConnId)
	if err != nil {
		return UpdatePlayerStateResponse{}, err
	}
	defer r.mu.Unlock()

	if params.ConnId != r.hostId {
		return UpdatePlayerStateResponse{}, ErrPermissionDenied
	}

	isPlaying := r.player.isPlaying
	switch params.Event {
	case PlayerEventPlay:
		isPlaying = true
	case PlayerEventPause:
		isPlaying = false
	case PlayerEventSeek:
	case PlayerEventState:
		isPlaying = params.IsPlaying != nil && *params.IsPlaying
	default:
		return UpdatePlayerStateResponse{}, ErrInvalidAction
	}

	r.player = playerState{
		currentTime: sanitizeTime(params.CurrentTime),
		isPlaying:   isPlaying,
		updatedAt:   s.now(),
	}
	if isPlaying {
		s.startHeartbeat(r)
	} else {
		s.stopHeartbeat(r)
	}

	state := s.syncState(r)
	s.broadcast(ctx, r, EventSyncState, state, r.hostId)

	return UpdatePlayerStateResponse{State: state}, nil
}

type RequestSyncParams struct {
	ConnId string
}

// RequestSync sends the current authoritative state to the requester only.
func (s *service) RequestSync(ctx context.Context, params *RequestSyncParams) error {
	r, err := s.lockMemberRoom(params.ConnId)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	s.send(ctx, params.ConnId, EventSyncState, s.syncState(r))

	return nil
}

// startHeartbeat begins periodic sync-state broadcasts to followers while
// the room plays. Must be called with the room locked.
func (s *service) startHeartbeat(r *roomState) {
	if r.heartbeat != nil || s.heartbeatInterval <= 0 {
		return
	}

	stop := make(chan struct{})
	r.heartbeat = stop
	go s.runHeartbeat(r, stop)
}

// stopHeartbeat must be called with the room locked.
func (s *service) stopHeartbeat(r *roomState) {
	if r.heartbeat == nil {
		return
	}

	close(r.heartbeat)
	r.heartbeat = nil
}

func (s *service) runHeartbeat(r *roomState, stop chan struct{}) {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.heartbeat != stop || r.closed || !r.player.isPlaying {
				r.mu.Unlock()
				return
			}
			s.broadcast(ctx, r, EventSyncState, s.syncState(r), r.hostId)
			r.mu.Unlock()
		}
	}
}
