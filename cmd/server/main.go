package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/watchparty/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	secret = configVar[string]{
		envKey:       "SERVER_SECRET",
		flagKey:      "secret",
		defaultValue: "",
		usage:        "Secret used to sign account tokens",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 3000,
		usage:        "Server port",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 50,
		usage:        "Maximum number of members in a room",
	}
	playlistLimit = configVar[int]{
		envKey:       "SERVER_PLAYLIST_LIMIT",
		flagKey:      "playlist-limit",
		defaultValue: 100,
		usage:        "Maximum number of videos in a playlist",
	}
	chatLimit = configVar[int]{
		envKey:       "SERVER_CHAT_LIMIT",
		flagKey:      "chat-limit",
		defaultValue: 100,
		usage:        "Number of chat messages kept per room, at most 100",
	}
	maxUploadMB = configVar[int]{
		envKey:       "SERVER_MAX_UPLOAD_MB",
		flagKey:      "max-upload-mb",
		defaultValue: 1024,
		usage:        "Maximum upload size in megabytes",
	}
	heartbeatInterval = configVar[time.Duration]{
		envKey:       "SERVER_HEARTBEAT_INTERVAL",
		flagKey:      "heartbeat-interval",
		defaultValue: 2 * time.Second,
		usage:        "Interval between sync heartbeats while playing, 0 disables",
	}
	blobDir = configVar[string]{
		envKey:       "SERVER_BLOB_DIR",
		flagKey:      "blob-dir",
		defaultValue: "./uploads",
		usage:        "Directory for uploaded videos, empty disables uploads",
	}
	publicBaseURL = configVar[string]{
		envKey:       "SERVER_PUBLIC_BASE_URL",
		flagKey:      "public-base-url",
		defaultValue: "",
		usage:        "Prefix for media file urls",
	}
	youtubeLookup = configVar[bool]{
		envKey:       "SERVER_YOUTUBE_LOOKUP",
		flagKey:      "youtube-lookup",
		defaultValue: false,
		usage:        "Look up YouTube titles through oEmbed",
	}
	iceServers = configVar[string]{
		envKey:       "SERVER_ICE_SERVERS",
		flagKey:      "ice-servers",
		defaultValue: "",
		usage:        "ICE servers as a JSON array or comma separated urls",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
		usage:        "Redis password",
	}
	sessionTTL = configVar[time.Duration]{
		envKey:       "SERVER_SESSION_TTL",
		flagKey:      "session-ttl",
		defaultValue: 30 * 24 * time.Hour,
		usage:        "Account session lifetime",
	}
)

func (v configVar[T]) bind() {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, secret.usage)
	pflag.Int(port.flagKey, port.defaultValue, port.usage)
	pflag.String(host.flagKey, host.defaultValue, host.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.Int(membersLimit.flagKey, membersLimit.defaultValue, membersLimit.usage)
	pflag.Int(playlistLimit.flagKey, playlistLimit.defaultValue, playlistLimit.usage)
	pflag.Int(chatLimit.flagKey, chatLimit.defaultValue, chatLimit.usage)
	pflag.Int(maxUploadMB.flagKey, maxUploadMB.defaultValue, maxUploadMB.usage)
	pflag.Duration(heartbeatInterval.flagKey, heartbeatInterval.defaultValue, heartbeatInterval.usage)
	pflag.String(blobDir.flagKey, blobDir.defaultValue, blobDir.usage)
	pflag.String(publicBaseURL.flagKey, publicBaseURL.defaultValue, publicBaseURL.usage)
	pflag.Bool(youtubeLookup.flagKey, youtubeLookup.defaultValue, youtubeLookup.usage)
	pflag.String(iceServers.flagKey, iceServers.defaultValue, iceServers.usage)
	pflag.String(redisHost.flagKey, redisHost.defaultValue, redisHost.usage)
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, redisPort.usage)
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, redisPassword.usage)
	pflag.Duration(sessionTTL.flagKey, sessionTTL.defaultValue, sessionTTL.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	secret.bind()
	port.bind()
	host.bind()
	logLevel.bind()
	membersLimit.bind()
	playlistLimit.bind()
	chatLimit.bind()
	maxUploadMB.bind()
	heartbeatInterval.bind()
	blobDir.bind()
	publicBaseURL.bind()
	youtubeLookup.bind()
	iceServers.bind()
	redisHost.bind()
	redisPort.bind()
	redisPassword.bind()
	sessionTTL.bind()

	return &app.AppConfig{
		Secret:            viper.GetString(secret.flagKey),
		Host:              viper.GetString(host.flagKey),
		Port:              viper.GetInt(port.flagKey),
		LogLevel:          viper.GetString(logLevel.flagKey),
		MembersLimit:      viper.GetInt(membersLimit.flagKey),
		PlaylistLimit:     viper.GetInt(playlistLimit.flagKey),
		ChatLimit:         viper.GetInt(chatLimit.flagKey),
		MaxUploadMB:       viper.GetInt(maxUploadMB.flagKey),
		HeartbeatInterval: viper.GetDuration(heartbeatInterval.flagKey),
		BlobDir:           viper.GetString(blobDir.flagKey),
		PublicBaseURL:     viper.GetString(publicBaseURL.flagKey),
		YoutubeLookup:     viper.GetBool(youtubeLookup.flagKey),
		IceServers:        viper.GetString(iceServers.flagKey),
		RedisHost:         viper.GetString(redisHost.flagKey),
		RedisPort:         viper.GetInt(redisPort.flagKey),
		RedisPassword:     viper.GetString(redisPassword.flagKey),
		SessionTTL:        viper.GetDuration(sessionTTL.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal(err)
	}
}
