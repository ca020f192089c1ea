package room

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/repository/blob"
)

const (
	defaultMembersLimit      = 50
	defaultPlaylistLimit     = 100
	defaultChatLimit         = 100
	// MaxChatLimit is the most chat messages a room ever keeps.
	MaxChatLimit             = 100
	defaultHeartbeatInterval = 2 * time.Second
	syncTolerance            = 0.9
)

type iConnRepo interface {
	Add(connId string, conn *websocket.Conn) error
	Remove(connId string) error
	Send(connId string, msg any) error
}

type iBlobStore interface {
	Put(ctx context.Context, scope, name string, r io.Reader, contentType string) (blob.Ref, error)
	Copy(ctx context.Context, src blob.Ref, dstScope string) (blob.Ref, error)
	Delete(ctx context.Context, ref blob.Ref) error
	List(ctx context.Context, scope string) ([]blob.Object, error)
}

type Config struct {
	MembersLimit  int
	PlaylistLimit int
	ChatLimit     int
	// HeartbeatInterval of zero or less disables the playing-room heartbeat.
	HeartbeatInterval time.Duration
	// MediaBaseURL prefixes blob refs to build fileUrl values.
	MediaBaseURL string
	Now          func() time.Time
}

type session struct {
	roomId      string
	displayName string
}

type service struct {
	connRepo  iConnRepo
	blobStore iBlobStore
	blobs     *blobTracker
	registry  *registry
	logger    *slog.Logger

	sessions   map[string]session
	sessionsMu sync.Mutex

	membersLimit      int
	playlistLimit     int
	chatLimit         int
	heartbeatInterval time.Duration
	mediaBaseURL      string
	now               func() time.Time
}

func NewService(connRepo iConnRepo, blobStore iBlobStore, cfg *Config, logger *slog.Logger) *service {
	s := service{
		connRepo:          connRepo,
		blobStore:         blobStore,
		blobs:             newBlobTracker(),
		registry:          newRegistry(),
		logger:            logger,
		sessions:          make(map[string]session),
		membersLimit:      defaultMembersLimit,
		playlistLimit:     defaultPlaylistLimit,
		chatLimit:         defaultChatLimit,
		heartbeatInterval: defaultHeartbeatInterval,
		mediaBaseURL:      "/media",
		now:               time.Now,
	}

	if cfg != nil {
		if cfg.MembersLimit > 0 {
			s.membersLimit = cfg.MembersLimit
		}
		if cfg.PlaylistLimit > 0 {
			s.playlistLimit = cfg.PlaylistLimit
		}
		if cfg.ChatLimit > 0 {
			s.chatLimit = min(cfg.ChatLimit, MaxChatLimit)
		}
		s.heartbeatInterval = cfg.HeartbeatInterval
		if cfg.MediaBaseURL != "" {
			s.mediaBaseURL = cfg.MediaBaseURL
		}
		if cfg.Now != nil {
			s.now = cfg.Now
		}
	}

	return &s
}

type ConnectMemberParams struct {
	Conn   *websocket.Conn
	ConnId string
}

// ConnectMember registers a freshly accepted websocket so events can be
// delivered to it.
func (s *service) ConnectMember(ctx context.Context, params *ConnectMemberParams) error {
	if err := s.connRepo.Add(params.ConnId, params.Conn); err != nil {
		s.logger.InfoContext(ctx, "failed to add connection", "error", err)
		return err
	}

	return nil
}

type DisconnectMemberParams struct {
	ConnId string
}

// DisconnectMember runs the leave flow for the connection, if it joined a
// room, and releases its outbound queue. Safe to call more than once.
func (s *service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) {
	if _, err := s.LeaveRoom(ctx, &LeaveRoomParams{ConnId: params.ConnId}); err != nil && !errors.Is(err, ErrNotJoined) {
		s.logger.InfoContext(ctx, "failed to leave room", "error", err)
	}

	if err := s.connRepo.Remove(params.ConnId); err != nil {
		s.logger.DebugContext(ctx, "failed to remove connection", "error", err)
	}
}

// Notify delivers a single event to one connection outside any room.
func (s *service) Notify(ctx context.Context, connId string, eventType string, payload any) {
	s.send(ctx, connId, eventType, payload)
}

// RoomsCount reports how many rooms are live.
func (s *service) RoomsCount() int {
	return s.registry.len()
}

func (s *service) getSession(connId string) (session, bool) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	sess, ok := s.sessions[connId]
	return sess, ok
}

// takeSession removes and returns the session; only one caller ever gets it.
func (s *service) takeSession(connId string) (session, bool) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	sess, ok := s.sessions[connId]
	if ok {
		delete(s.sessions, connId)
	}
	return sess, ok
}

func (s *service) send(ctx context.Context, connId string, eventType string, payload any) {
	if err := s.connRepo.Send(connId, Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.DebugContext(ctx, "failed to send event", "conn_id", connId, "type", eventType, "error", err)
	}
}

// broadcast must be called with the room locked.
func (s *service) broadcast(ctx context.Context, r *roomState, eventType string, payload any, exclude ...string) {
	for _, id := range r.memberIds {
		skip := false
		for _, ex := range exclude {
			if id == ex {
				skip = true
				break
			}
		}
		if !skip {
			s.send(ctx, id, eventType, payload)
		}
	}
}

// bestEffort logs err and carries on.
func (s *service) bestEffort(ctx context.Context, msg string, err error, args ...any) {
	if err == nil {
		return
	}
	s.logger.WarnContext(ctx, msg, append(args, "error", err)...)
}

func (s *service) nowMillis() int64 {
	return s.now().UnixMilli()
}

// lockRoom finds an existing room and locks it. It never creates rooms.
func (s *service) lockRoom(rawRoomId string) (*roomState, error) {
	r, ok := s.registry.lookup(NormalizeRoomId(rawRoomId))
	if !ok {
		return nil, ErrRoomNotFound
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRoomNotFound
	}

	return r, nil
}

// relock locks r again after unlocked storage work. A room torn down in the
// meantime stays gone even when a new room has taken over its id.
func (s *service) relock(r *roomState) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	return nil
}

// lockMemberRoom locks the room the connection joined.
func (s *service) lockMemberRoom(connId string) (*roomState, error) {
	sess, ok := s.getSession(connId)
	if !ok {
		return nil, ErrNotJoined
	}

	r, err := s.lockRoom(sess.roomId)
	if err != nil {
		return nil, err
	}

	if !r.hasMember(connId) {
		r.mu.Unlock()
		return nil, ErrNotJoined
	}

	return r, nil
}
