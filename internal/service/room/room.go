package room

import (
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

type playerState struct {
	currentTime float64
	isPlaying   bool
	updatedAt   time.Time
}

type roomState struct {
	mu     sync.Mutex
	id     string
	closed bool

	hostId    string
	memberIds []string
	names     map[string]string
	coHostIds map[string]struct{}

	playlist        []Video
	pendingRequests []Request
	media           Media
	chat            []ChatMessage
	voiceIds        []string
	player          playerState
	heartbeat       chan struct{}
}

func newRoomState(id string) *roomState {
	return &roomState{
		id:              id,
		memberIds:       []string{},
		names:           make(map[string]string),
		coHostIds:       make(map[string]struct{}),
		playlist:        []Video{},
		pendingRequests: []Request{},
		media:           EmptyMedia{},
		chat:            []ChatMessage{},
		voiceIds:        []string{},
	}
}

func (r *roomState) hasMember(connId string) bool {
	_, ok := r.names[connId]
	return ok
}

func (r *roomState) isCoHost(connId string) bool {
	_, ok := r.coHostIds[connId]
	return ok
}

func (r *roomState) canManageMedia(connId string) bool {
	if connId == "" {
		return false
	}
	return connId == r.hostId || r.isCoHost(connId)
}

func (r *roomState) role(connId string) Role {
	switch {
	case connId == r.hostId:
		return RoleHost
	case r.isCoHost(connId):
		return RoleCoHost
	default:
		return RoleViewer
	}
}

func (r *roomState) members() []Member {
	members := make([]Member, 0, len(r.memberIds))
	for _, id := range r.memberIds {
		members = append(members, Member{
			Id:   id,
			Name: r.names[id],
			Role: r.role(id),
		})
	}
	return members
}

func (r *roomState) addMember(connId, name string) {
	r.memberIds = append(r.memberIds, connId)
	r.names[connId] = name
	if r.hostId == "" {
		r.hostId = connId
		delete(r.coHostIds, connId)
	}
}

func (r *roomState) removeMember(connId string) {
	if i := slices.Index(r.memberIds, connId); i >= 0 {
		r.memberIds = slices.Delete(r.memberIds, i, i+1)
	}
	delete(r.names, connId)
	delete(r.coHostIds, connId)
}

// failover hands the host role to the earliest-joined remaining member and
// reports whether the host changed.
func (r *roomState) failover(leftId string) bool {
	if r.hostId != leftId {
		return false
	}

	r.hostId = ""
	if len(r.memberIds) > 0 {
		r.hostId = r.memberIds[0]
		delete(r.coHostIds, r.hostId)
	}

	return true
}

func (r *roomState) videoIndex(videoId string) int {
	return slices.IndexFunc(r.playlist, func(v Video) bool { return v.Id == videoId })
}

func (r *roomState) requestIndex(requestId string) int {
	return slices.IndexFunc(r.pendingRequests, func(req Request) bool { return req.Id == requestId })
}

// putVideo appends v, or replaces an item with the same id that a storage
// listing added first.
func (r *roomState) putVideo(v Video) {
	if i := r.videoIndex(v.Id); i >= 0 {
		r.playlist[i] = v
		return
	}
	r.playlist = append(r.playlist, v)
}

// putBackRequest reinserts a claimed request at idx.
func (r *roomState) putBackRequest(req Request, idx int) {
	idx = min(idx, len(r.pendingRequests))
	r.pendingRequests = slices.Insert(r.pendingRequests, idx, req)
}

func (r *roomState) inCall(connId string) bool {
	return slices.Contains(r.voiceIds, connId)
}

// snapshot builds the join-time view of the room for connId.
func (r *roomState) snapshot(connId string, state SyncState) RoomState {
	return RoomState{
		RoomId:            r.id,
		SocketId:          connId,
		Role:              r.role(connId),
		IsHost:            connId == r.hostId,
		IsCoHost:          r.isCoHost(connId),
		HostId:            r.hostId,
		Media:             r.mediaPayload(),
		Playlist:          slices.Clone(r.playlist),
		PendingRequests:   slices.Clone(r.pendingRequests),
		CurrentVideoId:    r.currentVideoId(),
		State:             state,
		Members:           r.members(),
		ChatMessages:      slices.Clone(r.chat),
		VoiceParticipants: slices.Clone(r.voiceIds),
		SyncTolerance:     syncTolerance,
	}
}
