package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/controller"
	accountredis "github.com/sharetube/watchparty/internal/repository/account/redis"
	blobfs "github.com/sharetube/watchparty/internal/repository/blob/fs"
	"github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	"github.com/sharetube/watchparty/internal/service/account"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
	"github.com/sharetube/watchparty/pkg/redisclient"
	"github.com/spf13/afero"
)

type AppConfig struct {
	Secret            string        `json:"-"`
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	LogLevel          string        `json:"log_level"`
	MembersLimit      int           `json:"members_limit"`
	PlaylistLimit     int           `json:"playlist_limit"`
	ChatLimit         int           `json:"chat_limit"`
	MaxUploadMB       int           `json:"max_upload_mb"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	BlobDir           string        `json:"blob_dir"`
	PublicBaseURL     string        `json:"public_base_url"`
	YoutubeLookup     bool          `json:"youtube_lookup"`
	IceServers        string        `json:"ice_servers"`
	RedisHost         string        `json:"redis_host"`
	RedisPort         int           `json:"redis_port"`
	RedisPassword     string        `json:"-"`
	SessionTTL        time.Duration `json:"session_ttl"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	if cfg.PlaylistLimit < 1 {
		return fmt.Errorf("playlist limit must be greater than 0")
	}
	if cfg.ChatLimit < 1 || cfg.ChatLimit > room.MaxChatLimit {
		return fmt.Errorf("chat limit must be between 1 and %d", room.MaxChatLimit)
	}
	if cfg.MaxUploadMB < 1 {
		return fmt.Errorf("max upload size must be greater than 0")
	}
	if cfg.HeartbeatInterval < 0 {
		return fmt.Errorf("heartbeat interval must not be negative")
	}
	if cfg.SessionTTL < 0 {
		return fmt.Errorf("session ttl must not be negative")
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if _, err := parseIceServers(cfg.IceServers); err != nil {
		return err
	}
	return nil
}

// parseIceServers accepts either a JSON array of ICE server objects or a
// comma separated list of urls.
func parseIceServers(raw string) ([]controller.IceServer, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if strings.HasPrefix(raw, "[") {
		var servers []controller.IceServer
		if err := json.Unmarshal([]byte(raw), &servers); err != nil {
			return nil, fmt.Errorf("invalid ice servers: %w", err)
		}
		return servers, nil
	}

	var servers []controller.IceServer
	for _, u := range strings.Split(raw, ",") {
		if u = strings.TrimSpace(u); u != "" {
			servers = append(servers, controller.IceServer{URLs: []string{u}})
		}
	}
	return servers, nil
}

func newLogger(cfg *AppConfig) *slog.Logger {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		logLevel = slog.LevelInfo
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h)
}

// newBlobFs roots blob storage at dir. An empty dir disables storage.
func newBlobFs(dir string) (afero.Fs, error) {
	if dir == "" {
		return nil, nil
	}

	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob dir: %w", err)
	}

	return afero.NewBasePathFs(osFs, dir), nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// newHandler wires every layer. The returned cleanup releases the redis
// client, when one was created.
func newHandler(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (http.Handler, func(), error) {
	cleanup := func() {}

	iceServers, err := parseIceServers(cfg.IceServers)
	if err != nil {
		return nil, cleanup, err
	}

	blobFs, err := newBlobFs(cfg.BlobDir)
	if err != nil {
		return nil, cleanup, err
	}
	if blobFs == nil {
		logger.WarnContext(ctx, "blob dir is not set, uploads are disabled")
	}
	blobStore := blobfs.NewStore(blobFs, logger)

	secret := cfg.Secret
	if secret == "" {
		logger.WarnContext(ctx, "secret is not set, account tokens will not survive a restart")
		secret = randomSecret()
	}
	accountConfig := &account.Config{
		Secret:     secret,
		SessionTTL: cfg.SessionTTL,
	}

	var accountService *account.Service
	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.WarnContext(ctx, "redis is unavailable, accounts are disabled", "error", err)
		accountService = account.NewService(nil, accountConfig, logger)
	} else {
		cleanup = func() { closeRedis(logger, rc) }
		accountService = account.NewService(accountredis.NewRepo(rc, logger), accountConfig, logger)
	}

	connectionRepo := inmemory.NewRepo(nil, logger)
	roomService := room.NewService(connectionRepo, blobStore, &room.Config{
		MembersLimit:      cfg.MembersLimit,
		PlaylistLimit:     cfg.PlaylistLimit,
		ChatLimit:         cfg.ChatLimit,
		HeartbeatInterval: cfg.HeartbeatInterval,
		MediaBaseURL:      strings.TrimRight(cfg.PublicBaseURL, "/") + "/media",
	}, logger)

	controller := controller.NewController(roomService, accountService, blobStore, &controller.Config{
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		IceServers:     iceServers,
		YoutubeLookup:  cfg.YoutubeLookup,
	}, logger)

	return controller.GetMux(), cleanup, nil
}

func closeRedis(logger *slog.Logger, rc *redis.Client) {
	if err := rc.Close(); err != nil {
		logger.Warn("failed to close redis client", "error", err)
	}
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg)

	handler, cleanup, err := newHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-serverCtx.Done()

	return nil
}
