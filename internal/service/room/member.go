package room

import (
	"context"
	"strings"
	"unicode/utf8"
)

const (
	defaultMemberName = "Guest"
	maxMemberNameLen  = 32
)

// SanitizeName trims and collapses whitespace in a display name and caps its
// length. Empty names become "Guest".
func SanitizeName(raw string) string {
	name := strings.Join(strings.Fields(raw), " ")
	if utf8.RuneCountInString(name) > maxMemberNameLen {
		name = strings.TrimSpace(string([]rune(name)[:maxMemberNameLen]))
	}
	if name == "" {
		return defaultMemberName
	}
	return name
}

type JoinRoomParams struct {
	ConnId   string
	RoomId   string
	Username string
}

type JoinRoomResponse struct {
	RoomId string
	Name   string
	Role   Role
	State  RoomState
}

// JoinRoom adds the connection to the room, creating the room when needed.
// The joiner receives room-state and the room receives room-members.
func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	if _, ok := s.getSession(params.ConnId); ok {
		return JoinRoomResponse{}, ErrAlreadyJoined
	}

	roomId := NormalizeRoomId(params.RoomId)
	name := SanitizeName(params.Username)

	listedAt := s.nowMillis()
	objects, listErr := s.blobStore.List(ctx, storageScope(roomId, scopePlaylist))
	if listErr != nil {
		s.logger.DebugContext(ctx, "skipping playlist sync on join", "room_id", roomId, "error", listErr)
	}

	var r *roomState
	for {
		r = s.registry.resolve(roomId)
		r.mu.Lock()
		if !r.closed {
			break
		}
		r.mu.Unlock()
	}
	defer r.mu.Unlock()

	if len(r.memberIds) >= s.membersLimit {
		return JoinRoomResponse{}, ErrRoomFull
	}

	if listErr == nil {
		s.applyListing(ctx, r, objects, listedAt, false)
	}

	r.addMember(params.ConnId, name)

	s.sessionsMu.Lock()
	s.sessions[params.ConnId] = session{roomId: roomId, displayName: name}
	s.sessionsMu.Unlock()

	state := r.snapshot(params.ConnId, s.syncState(r))
	s.send(ctx, params.ConnId, EventRoomState, state)
	s.broadcastMembers(ctx, r)

	s.logger.InfoContext(ctx, "member joined", "room_id", roomId, "conn_id", params.ConnId, "role", state.Role)

	return JoinRoomResponse{
		RoomId: roomId,
		Name:   name,
		Role:   state.Role,
		State:  state,
	}, nil
}

type LeaveRoomParams struct {
	ConnId string
}

type LeaveRoomResponse struct {
	RoomId        string
	HostId        string
	IsRoomDeleted bool
}

// LeaveRoom removes the connection from its room. Only the first call for a
// connection has any effect; later calls return ErrNotJoined.
func (s *service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (LeaveRoomResponse, error) {
	sess, ok := s.takeSession(params.ConnId)
	if !ok {
		return LeaveRoomResponse{}, ErrNotJoined
	}

	r, err := s.lockRoom(sess.roomId)
	if err != nil {
		return LeaveRoomResponse{}, err
	}
	defer r.mu.Unlock()

	if !r.hasMember(params.ConnId) {
		return LeaveRoomResponse{}, ErrNotJoined
	}

	s.leaveCall(ctx, r, params.ConnId)
	r.removeMember(params.ConnId)
	hostChanged := r.failover(params.ConnId)

	if s.destroyIfEmpty(ctx, r) {
		return LeaveRoomResponse{RoomId: r.id, IsRoomDeleted: true}, nil
	}

	if hostChanged {
		s.logger.InfoContext(ctx, "host changed", "room_id", r.id, "host_id", r.hostId)
		s.broadcast(ctx, r, EventHostChanged, HostChangedPayload{HostId: r.hostId})
	}
	s.broadcastMembers(ctx, r)
	s.broadcastQueue(ctx, r)

	return LeaveRoomResponse{
		RoomId: r.id,
		HostId: r.hostId,
	}, nil
}

const (
	RoleActionPromote = "promote"
	RoleActionDemote  = "demote"
)

type UpdateMemberRoleParams struct {
	RoomId   string
	SenderId string
	TargetId string
	Action   string
}

type UpdateMemberRoleResponse struct {
	Members []Member
}

// UpdateMemberRole grants or revokes co-host. Only the host may call it and
// the host's own role cannot be changed this way.
func (s *service) UpdateMemberRole(ctx context.Context, params *UpdateMemberRoleParams) (UpdateMemberRoleResponse, error) {
	r, err := s.lockRoom(params.RoomId)
	if err != nil {
		return UpdateMemberRoleResponse{}, err
	}
	defer r.mu.Unlock()

	if params.SenderId == "" || params.SenderId != r.hostId {
		return UpdateMemberRoleResponse{}, ErrPermissionDenied
	}
	if !r.hasMember(params.TargetId) {
		return UpdateMemberRoleResponse{}, ErrMemberNotFound
	}
	if params.TargetId == r.hostId {
		return UpdateMemberRoleResponse{}, ErrHostRoleImmutable
	}

	switch params.Action {
	case RoleActionPromote:
		r.coHostIds[params.TargetId] = struct{}{}
	case RoleActionDemote:
		delete(r.coHostIds, params.TargetId)
	default:
		return UpdateMemberRoleResponse{}, ErrInvalidAction
	}

	s.broadcastMembers(ctx, r)

	return UpdateMemberRoleResponse{Members: r.members()}, nil
}

func (s *service) broadcastMembers(ctx context.Context, r *roomState) {
	s.broadcast(ctx, r, EventRoomMembers, RoomMembersPayload{
		HostId:  r.hostId,
		Members: r.members(),
	})
}

// uploaderName returns the display name recorded for connId at join time.
func (s *service) uploaderName(r *roomState, connId string) string {
	if name, ok := r.names[connId]; ok {
		return name
	}
	return defaultMemberName
}
