package room

import (
	"context"
	"encoding/json"

	"golang.org/x/exp/slices"
)

const (
	SignalOffer        = "voice-offer"
	SignalAnswer       = "voice-answer"
	SignalIceCandidate = "voice-ice-candidate"
)

type JoinCallParams struct {
	ConnId string
}

type JoinCallResponse struct {
	Participants []string
}

// JoinCall adds the member to the room's voice call. The joiner gets the
// other participants; everyone else learns about the joiner.
func (s *service) JoinCall(ctx context.Context, params *JoinCallParams) (JoinCallResponse, error) {
	r, err := s.lockMemberRoom(params.ConnId)
	if err != nil {
		return JoinCallResponse{}, err
	}
	defer r.mu.Unlock()

	others := make([]string, 0, len(r.voiceIds))
	for _, id := range r.voiceIds {
		if id != params.ConnId {
			others = append(others, id)
		}
	}

	s.send(ctx, params.ConnId, EventVoiceParticipant, VoiceParticipantsPayload{Participants: others})

	// a repeated voice-join only refreshes the joiner's participant list
	if !r.inCall(params.ConnId) {
		r.voiceIds = append(r.voiceIds, params.ConnId)
		s.broadcast(ctx, r, EventVoiceUserJoined, VoiceUserPayload{SocketId: params.ConnId}, params.ConnId)
	}

	return JoinCallResponse{Participants: others}, nil
}

type LeaveCallParams struct {
	ConnId string
}

func (s *service) LeaveCall(ctx context.Context, params *LeaveCallParams) error {
	r, err := s.lockMemberRoom(params.ConnId)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	s.leaveCall(ctx, r, params.ConnId)

	return nil
}

// leaveCall must be called with the room locked.
func (s *service) leaveCall(ctx context.Context, r *roomState, connId string) {
	idx := slices.Index(r.voiceIds, connId)
	if idx < 0 {
		return
	}

	r.voiceIds = slices.Delete(r.voiceIds, idx, idx+1)
	s.broadcast(ctx, r, EventVoiceUserLeft, VoiceUserPayload{SocketId: connId}, connId)
}

type RelaySignalParams struct {
	Kind     string
	FromId   string
	TargetId string
	Payload  json.RawMessage
}

// RelaySignal forwards an opaque call negotiation message to one peer. Both
// peers must be in the same room's call.
func (s *service) RelaySignal(ctx context.Context, params *RelaySignalParams) error {
	switch params.Kind {
	case SignalOffer, SignalAnswer, SignalIceCandidate:
	default:
		return ErrInvalidAction
	}

	r, err := s.lockMemberRoom(params.FromId)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if params.TargetId == params.FromId || !r.inCall(params.FromId) || !r.inCall(params.TargetId) {
		return ErrNotInCall
	}

	s.send(ctx, params.TargetId, params.Kind, SignalPayload{
		FromId:  params.FromId,
		Payload: params.Payload,
	})

	return nil
}
