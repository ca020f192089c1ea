package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/repository/blob"
	"github.com/sharetube/watchparty/internal/service/account"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/validator"
	"github.com/sharetube/watchparty/pkg/wsrouter"
	"github.com/sharetube/watchparty/pkg/ytvideodata"
	"github.com/spf13/afero"
)

const (
	defaultMaxUploadBytes = 1 << 30
	wsReadLimit           = 64 << 10
	wsPongWait            = 60 * time.Second
	defaultLookupTimeout  = 3 * time.Second
)

type iRoomService interface {
	ConnectMember(context.Context, *room.ConnectMemberParams) error
	DisconnectMember(context.Context, *room.DisconnectMemberParams)
	Notify(ctx context.Context, connId string, eventType string, payload any)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	UpdateMemberRole(context.Context, *room.UpdateMemberRoleParams) (room.UpdateMemberRoleResponse, error)
	UploadVideo(context.Context, *room.UploadVideoParams) (room.UploadVideoResponse, error)
	RequestUpload(context.Context, *room.RequestUploadParams) (room.RequestUploadResponse, error)
	ProcessRequest(context.Context, *room.ProcessRequestParams) (room.ProcessRequestResponse, error)
	SelectVideo(context.Context, *room.SelectVideoParams) (room.SetMediaResponse, error)
	DeleteVideo(context.Context, *room.DeleteVideoParams) error
	ClearMedia(context.Context, *room.ClearMediaParams) error
	SetYoutube(context.Context, *room.SetYoutubeParams) (room.SetMediaResponse, error)
	SetExternal(context.Context, *room.SetExternalParams) (room.SetMediaResponse, error)
	SyncPlaylist(context.Context, *room.SyncPlaylistParams) (room.SyncPlaylistResponse, error)
	UpdatePlayerState(context.Context, *room.UpdatePlayerStateParams) (room.UpdatePlayerStateResponse, error)
	RequestSync(context.Context, *room.RequestSyncParams) error
	SendChatMessage(context.Context, *room.SendChatMessageParams) (room.SendChatMessageResponse, error)
	JoinCall(context.Context, *room.JoinCallParams) (room.JoinCallResponse, error)
	LeaveCall(context.Context, *room.LeaveCallParams) error
	RelaySignal(context.Context, *room.RelaySignalParams) error
	RoomsCount() int
}

type iAccountService interface {
	Register(context.Context, *account.RegisterParams) (account.AuthResponse, error)
	Login(context.Context, *account.LoginParams) (account.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	GetUserByToken(ctx context.Context, token string) (account.User, error)
	UpdateProfile(context.Context, *account.UpdateProfileParams) (account.User, error)
	TouchRoom(context.Context, *account.TouchRoomParams) error
	AddWatchHistory(context.Context, *account.AddWatchHistoryParams) error
	GetDashboard(ctx context.Context, token string) (account.Dashboard, error)
}

type iMediaStore interface {
	Open(ctx context.Context, ref blob.Ref) (afero.File, blob.Object, error)
}

type IceServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type Config struct {
	MaxUploadBytes int64
	IceServers     []IceServer
	// YoutubeLookup fetches titles for YouTube links sent without one.
	YoutubeLookup bool
	LookupTimeout time.Duration
}

type controller struct {
	roomService    iRoomService
	accountService iAccountService
	mediaStore     iMediaStore
	ytClient       *ytvideodata.Client
	wsmux          *wsrouter.WSRouter
	upgrader       websocket.Upgrader
	validate       *validator.Validator
	logger         *slog.Logger

	maxUploadBytes int64
	iceServers     []IceServer
}

func NewController(roomService iRoomService, accountService iAccountService, mediaStore iMediaStore, cfg *Config, logger *slog.Logger) *controller {
	c := controller{
		roomService:    roomService,
		accountService: accountService,
		mediaStore:     mediaStore,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate:       validator.NewValidator(),
		logger:         logger,
		maxUploadBytes: defaultMaxUploadBytes,
		iceServers:     defaultIceServers(),
	}

	if cfg != nil {
		if cfg.MaxUploadBytes > 0 {
			c.maxUploadBytes = cfg.MaxUploadBytes
		}
		if len(cfg.IceServers) > 0 {
			c.iceServers = cfg.IceServers
		}
		if cfg.YoutubeLookup {
			timeout := cfg.LookupTimeout
			if timeout <= 0 {
				timeout = defaultLookupTimeout
			}
			c.ytClient = ytvideodata.NewClient(timeout)
		}
	}

	c.wsmux = c.getWSRouter()

	return &c
}

func defaultIceServers() []IceServer {
	return []IceServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
}
