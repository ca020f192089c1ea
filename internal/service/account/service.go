package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	repo "github.com/sharetube/watchparty/internal/repository/account"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultSessionTTL  = 30 * 24 * time.Hour
	maxDisplayNameLen  = 40
	minPasswordLen     = 6
	maxPasswordLen     = 128
	roomHistoryLimit   = 50
	watchHistoryLimit  = 200
	dashboardHistory   = 100
	maxHistoryTitleLen = 200
)

var usernameRe = regexp.MustCompile(`^[a-z0-9._-]{3,32}$`)

type iAccountRepo interface {
	CreateUser(ctx context.Context, params *repo.CreateUserParams) error
	GetUserIdByUsername(ctx context.Context, username string) (string, error)
	GetUser(ctx context.Context, userId string) (repo.User, error)
	UpdateUserDisplayName(ctx context.Context, userId, displayName string) error
	SetSession(ctx context.Context, params *repo.SetSessionParams) error
	GetSessionUserId(ctx context.Context, sessionId string) (string, error)
	RemoveSession(ctx context.Context, sessionId string) error
	TouchRoom(ctx context.Context, params *repo.TouchRoomParams) error
	GetRooms(ctx context.Context, userId string, limit int) ([]repo.RoomVisit, error)
	AddHistory(ctx context.Context, params *repo.AddHistoryParams) error
	GetHistory(ctx context.Context, userId string, limit int) ([]repo.HistoryEntry, error)
}

type Config struct {
	Secret     string
	SessionTTL time.Duration
	BcryptCost int
	Now        func() time.Time
}

// Service manages optional user accounts. Built without a repository it
// reports every call as unavailable; rooms work without it.
type Service struct {
	repo       iAccountRepo
	secret     []byte
	sessionTTL time.Duration
	bcryptCost int
	now        func() time.Time
	logger     *slog.Logger
}

func NewService(accountRepo iAccountRepo, cfg *Config, logger *slog.Logger) *Service {
	s := Service{
		repo:       accountRepo,
		secret:     []byte(cfg.Secret),
		sessionTTL: defaultSessionTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		logger:     logger,
	}
	if cfg.SessionTTL > 0 {
		s.sessionTTL = cfg.SessionTTL
	}
	if cfg.BcryptCost > 0 {
		s.bcryptCost = cfg.BcryptCost
	}
	if cfg.Now != nil {
		s.now = cfg.Now
	}

	return &s
}

func (s *Service) Enabled() bool {
	return s.repo != nil
}

func (s *Service) ready() error {
	if s.repo == nil {
		return ErrUnavailable
	}
	return nil
}

func normalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// sanitizeDisplayName trims, collapses whitespace and caps the length.
func sanitizeDisplayName(raw string) string {
	name := strings.Join(strings.Fields(raw), " ")
	if utf8.RuneCountInString(name) > maxDisplayNameLen {
		name = strings.TrimSpace(string([]rune(name)[:maxDisplayNameLen]))
	}
	return name
}

func toUser(userId string, u repo.User) User {
	return User{
		Id:          userId,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type RegisterParams struct {
	Username    string
	Password    string
	DisplayName string
}

func (s *Service) Register(ctx context.Context, params *RegisterParams) (AuthResponse, error) {
	if err := s.ready(); err != nil {
		return AuthResponse{}, err
	}

	username := normalizeUsername(params.Username)
	if !usernameRe.MatchString(username) {
		return AuthResponse{}, ErrInvalidUsername
	}
	if len(params.Password) < minPasswordLen || len(params.Password) > maxPasswordLen {
		return AuthResponse{}, ErrInvalidPassword
	}
	displayName := sanitizeDisplayName(params.DisplayName)
	if displayName == "" {
		displayName = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.bcryptCost)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("failed to hash password: %w", err)
	}

	userId := uuid.NewString()
	createdAt := s.now().UnixMilli()
	if err := s.repo.CreateUser(ctx, &repo.CreateUserParams{
		UserId:       userId,
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    createdAt,
	}); err != nil {
		if errors.Is(err, repo.ErrUsernameTaken) {
			return AuthResponse{}, ErrUsernameTaken
		}
		s.logger.InfoContext(ctx, "failed to create user", "error", err)
		return AuthResponse{}, fmt.Errorf("failed to create user: %w", err)
	}

	user := User{Id: userId, Username: username, DisplayName: displayName, CreatedAt: createdAt}
	token, err := s.createSession(ctx, userId)
	if err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{Token: token, User: user}, nil
}

type LoginParams struct {
	Username string
	Password string
}

func (s *Service) Login(ctx context.Context, params *LoginParams) (AuthResponse, error) {
	if err := s.ready(); err != nil {
		return AuthResponse{}, err
	}

	userId, err := s.repo.GetUserIdByUsername(ctx, normalizeUsername(params.Username))
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return AuthResponse{}, ErrInvalidCredentials
		}
		return AuthResponse{}, fmt.Errorf("failed to get user id: %w", err)
	}

	u, err := s.repo.GetUser(ctx, userId)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return AuthResponse{}, ErrInvalidCredentials
		}
		return AuthResponse{}, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(params.Password)); err != nil {
		return AuthResponse{}, ErrInvalidCredentials
	}

	token, err := s.createSession(ctx, userId)
	if err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{Token: token, User: toUser(userId, u)}, nil
}

func (s *Service) createSession(ctx context.Context, userId string) (string, error) {
	sessionId := uuid.NewString()
	expiresAt := s.now().Add(s.sessionTTL)

	if err := s.repo.SetSession(ctx, &repo.SetSessionParams{
		SessionId: sessionId,
		UserId:    userId,
		TTL:       s.sessionTTL,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to store session", "error", err)
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	token, err := s.generateJWT(userId, sessionId, expiresAt)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return token, nil
}

// authenticate resolves a token to its live session.
func (s *Service) authenticate(ctx context.Context, token string) (claims, error) {
	if err := s.ready(); err != nil {
		return claims{}, err
	}
	if token == "" {
		return claims{}, ErrInvalidToken
	}

	c, err := s.parseJWT(token)
	if err != nil {
		s.logger.DebugContext(ctx, "failed to parse token", "error", err)
		return claims{}, ErrInvalidToken
	}

	userId, err := s.repo.GetSessionUserId(ctx, c.SessionId)
	if err != nil {
		if errors.Is(err, repo.ErrSessionNotFound) {
			return claims{}, ErrInvalidToken
		}
		return claims{}, fmt.Errorf("failed to get session: %w", err)
	}
	if userId != c.UserId {
		return claims{}, ErrInvalidToken
	}

	return c, nil
}

// GetUserByToken returns the account behind a session token.
func (s *Service) GetUserByToken(ctx context.Context, token string) (User, error) {
	c, err := s.authenticate(ctx, token)
	if err != nil {
		return User{}, err
	}

	u, err := s.repo.GetUser(ctx, c.UserId)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return User{}, ErrInvalidToken
		}
		return User{}, fmt.Errorf("failed to get user: %w", err)
	}

	return toUser(c.UserId, u), nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	c, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}

	if err := s.repo.RemoveSession(ctx, c.SessionId); err != nil && !errors.Is(err, repo.ErrSessionNotFound) {
		return fmt.Errorf("failed to remove session: %w", err)
	}

	return nil
}

type UpdateProfileParams struct {
	Token       string
	DisplayName string
}

func (s *Service) UpdateProfile(ctx context.Context, params *UpdateProfileParams) (User, error) {
	c, err := s.authenticate(ctx, params.Token)
	if err != nil {
		return User{}, err
	}

	displayName := sanitizeDisplayName(params.DisplayName)
	if displayName == "" {
		return User{}, fmt.Errorf("display name is required: %w", ErrInvalid)
	}

	if err := s.repo.UpdateUserDisplayName(ctx, c.UserId, displayName); err != nil {
		return User{}, fmt.Errorf("failed to update display name: %w", err)
	}

	return s.GetUserByToken(ctx, params.Token)
}

type TouchRoomParams struct {
	UserId string
	RoomId string
}

// TouchRoom moves the room to the front of the user's recent rooms.
func (s *Service) TouchRoom(ctx context.Context, params *TouchRoomParams) error {
	if err := s.ready(); err != nil {
		return err
	}
	if params.RoomId == "" {
		return fmt.Errorf("room id is required: %w", ErrInvalid)
	}

	return s.repo.TouchRoom(ctx, &repo.TouchRoomParams{
		UserId:   params.UserId,
		RoomId:   params.RoomId,
		JoinedAt: s.now().UnixMilli(),
		Limit:    roomHistoryLimit,
	})
}

type AddWatchHistoryParams struct {
	UserId    string
	RoomId    string
	MediaType string
	Title     string
	MediaId   string
}

func (s *Service) AddWatchHistory(ctx context.Context, params *AddWatchHistoryParams) error {
	if err := s.ready(); err != nil {
		return err
	}

	switch params.MediaType {
	case "youtube", "blob", "external":
	default:
		return fmt.Errorf("unknown media type %q: %w", params.MediaType, ErrInvalid)
	}

	title := strings.TrimSpace(params.Title)
	if utf8.RuneCountInString(title) > maxHistoryTitleLen {
		title = string([]rune(title)[:maxHistoryTitleLen])
	}

	return s.repo.AddHistory(ctx, &repo.AddHistoryParams{
		UserId: params.UserId,
		Entry: repo.HistoryEntry{
			RoomId:    params.RoomId,
			MediaType: params.MediaType,
			Title:     title,
			MediaId:   params.MediaId,
			WatchedAt: s.now().UnixMilli(),
		},
		Limit: watchHistoryLimit,
	})
}

func (s *Service) GetDashboard(ctx context.Context, token string) (Dashboard, error) {
	user, err := s.GetUserByToken(ctx, token)
	if err != nil {
		return Dashboard{}, err
	}

	visits, err := s.repo.GetRooms(ctx, user.Id, roomHistoryLimit)
	if err != nil {
		return Dashboard{}, fmt.Errorf("failed to get rooms: %w", err)
	}
	entries, err := s.repo.GetHistory(ctx, user.Id, dashboardHistory)
	if err != nil {
		return Dashboard{}, fmt.Errorf("failed to get history: %w", err)
	}

	rooms := make([]RoomVisit, 0, len(visits))
	for _, v := range visits {
		rooms = append(rooms, RoomVisit{RoomId: v.RoomId, LastJoinedAt: v.LastJoinedAt})
	}
	history := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		history = append(history, HistoryEntry(e))
	}

	return Dashboard{
		User:           user,
		Rooms:          rooms,
		WatchHistory:   history,
		SavedPlaylists: []any{},
	}, nil
}
