package room

import (
	"encoding/json"

	"github.com/sharetube/watchparty/internal/repository/blob"
)

type Role string

const (
	RoleHost   Role = "host"
	RoleCoHost Role = "cohost"
	RoleViewer Role = "viewer"
)

type Member struct {
	Id   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

type Video struct {
	Id             string   `json:"id"`
	FileName       string   `json:"fileName"`
	FileURL        string   `json:"fileUrl"`
	UploadedAt     int64    `json:"uploadedAt"`
	UploadedByName string   `json:"uploadedByName"`
	StorageRef     blob.Ref `json:"-"`
}

type Request struct {
	Id              string   `json:"id"`
	FileName        string   `json:"fileName"`
	RequestedByName string   `json:"requestedByName"`
	RequestedAt     int64    `json:"requestedAt"`
	RequestedById   string   `json:"-"`
	StorageRef      blob.Ref `json:"-"`
}

type ChatMessage struct {
	Id         string `json:"id"`
	SenderId   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Message    string `json:"message"`
	SentAt     int64  `json:"sentAt"`
}

type SyncState struct {
	CurrentTime float64 `json:"currentTime"`
	IsPlaying   bool    `json:"isPlaying"`
	SentAt      int64   `json:"sentAt"`
}

// MediaPayload is the wire form of the active media. Only the fields of the
// variant named by Type are set.
type MediaPayload struct {
	Type           string           `json:"type"`
	Id             string           `json:"id,omitempty"`
	FileName       string           `json:"fileName,omitempty"`
	FileURL        string           `json:"fileUrl,omitempty"`
	UploadedByName string           `json:"uploadedByName,omitempty"`
	UploadedAt     int64            `json:"uploadedAt,omitempty"`
	YoutubeId      string           `json:"youtubeId,omitempty"`
	URL            string           `json:"url,omitempty"`
	Title          string           `json:"title,omitempty"`
	Provider       *ProviderInsight `json:"provider,omitempty"`
}

// RoomState is the full snapshot sent to a member on join.
type RoomState struct {
	RoomId            string        `json:"roomId"`
	SocketId          string        `json:"socketId"`
	Role              Role          `json:"role"`
	IsHost            bool          `json:"isHost"`
	IsCoHost          bool          `json:"isCoHost"`
	HostId            string        `json:"hostId"`
	Media             *MediaPayload `json:"media"`
	Playlist          []Video       `json:"playlist"`
	PendingRequests   []Request     `json:"pendingRequests"`
	CurrentVideoId    *string       `json:"currentVideoId"`
	State             SyncState     `json:"state"`
	Members           []Member      `json:"members"`
	ChatMessages      []ChatMessage `json:"chatMessages"`
	VoiceParticipants []string      `json:"voiceParticipants"`
	SyncTolerance     float64       `json:"syncTolerance"`
}

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	EventRoomState        = "room-state"
	EventRoomMembers      = "room-members"
	EventHostChanged      = "host-changed"
	EventPlaylistUpdated  = "playlist-updated"
	EventQueueUpdated     = "queue-updated"
	EventMediaChanged     = "room-media-changed"
	EventMediaCleared     = "room-media-cleared"
	EventChatMessage      = "room-chat-message"
	EventSyncState        = "sync-state"
	EventVoiceParticipant = "voice-participants"
	EventVoiceUserJoined  = "voice-user-joined"
	EventVoiceUserLeft    = "voice-user-left"
)

type RoomMembersPayload struct {
	HostId  string   `json:"hostId"`
	Members []Member `json:"members"`
}

type HostChangedPayload struct {
	HostId string `json:"hostId"`
}

type PlaylistUpdatedPayload struct {
	Playlist       []Video `json:"playlist"`
	CurrentVideoId *string `json:"currentVideoId"`
}

type QueueUpdatedPayload struct {
	PendingRequests []Request `json:"pendingRequests"`
}

type MediaChangedPayload struct {
	Media *MediaPayload `json:"media"`
	State SyncState     `json:"state"`
}

type MediaClearedPayload struct {
	State SyncState `json:"state"`
}

type VoiceParticipantsPayload struct {
	Participants []string `json:"participants"`
}

type VoiceUserPayload struct {
	SocketId string `json:"socketId"`
}

type SignalPayload struct {
	FromId  string          `json:"fromId"`
	Payload json.RawMessage `json:"payload"`
}
