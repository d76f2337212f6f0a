package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/livebridge/cmd"
	"github.com/smazurov/livebridge/internal/api"
	"github.com/smazurov/livebridge/internal/calendar"
	"github.com/smazurov/livebridge/internal/config"
	"github.com/smazurov/livebridge/internal/encoder"
	"github.com/smazurov/livebridge/internal/events"
	"github.com/smazurov/livebridge/internal/ffmpeg"
	"github.com/smazurov/livebridge/internal/gateway"
	"github.com/smazurov/livebridge/internal/ingest"
	"github.com/smazurov/livebridge/internal/logging"
	"github.com/smazurov/livebridge/internal/status"
	"github.com/smazurov/livebridge/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
// Durations are strings parsed with time.ParseDuration.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port        string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CORSOrigins string `help:"Comma-separated allowed CORS origins (empty allows any)" default:"" toml:"server.cors_origins" env:"SERVER_CORS_ORIGINS"`

	// Auth settings
	AuthUsername string `help:"Admin basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Admin basic auth password (required unless auth.disabled)" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`
	AuthDisabled bool   `help:"Serve admin routes without authentication" default:"false" toml:"auth.disabled" env:"AUTH_DISABLED"`

	// Stream status settings
	StreamServerURL      string `help:"Streaming backend base URL" default:"" toml:"stream.server_url" env:"STREAM_SERVER_URL"`
	StreamSRSURL         string `help:"SRS streams API URL (default {server_url}/api/v1/streams/)" default:"" toml:"stream.srs_api_url" env:"STREAM_SRS_API_URL"`
	StreamOwncastURL     string `help:"Owncast status URL (default {server_url}/api/status)" default:"" toml:"stream.owncast_url" env:"STREAM_OWNCAST_URL"`
	StreamHLSBase        string `help:"Base URL for HLS playlist links (default server_url)" default:"" toml:"stream.hls_base_url" env:"STREAM_HLS_BASE_URL"`
	StreamName           string `help:"SRS stream name used for the HLS playlist" default:"livestream" toml:"stream.name" env:"STREAM_NAME"`
	StreamTitle          string `help:"Placeholder stream title" default:"Live Stream" toml:"stream.title" env:"STREAM_TITLE"`
	StreamSRSTimeout     string `help:"SRS probe timeout" default:"3s" toml:"stream.srs_timeout" env:"STREAM_SRS_TIMEOUT"`
	StreamOwncastTimeout string `help:"Owncast probe timeout" default:"5s" toml:"stream.owncast_timeout" env:"STREAM_OWNCAST_TIMEOUT"`

	// RTMP target
	RTMPURL       string `help:"RTMP ingest base URL, e.g. rtmp://localhost/live" default:"" toml:"rtmp.url" env:"RTMP_URL"`
	RTMPStreamKey string `help:"RTMP stream key" default:"" toml:"rtmp.stream_key" env:"RTMP_STREAM_KEY"`

	// Encoder settings
	EncoderBinary         string `help:"ffmpeg executable" default:"ffmpeg" toml:"encoder.binary" env:"ENCODER_BINARY"`
	EncoderInputFormat    string `help:"Force the input demuxer (webm, matroska)" default:"" toml:"encoder.input_format" env:"ENCODER_INPUT_FORMAT"`
	EncoderVideoCodec     string `help:"Video encoder" default:"libx264" toml:"encoder.video_codec" env:"ENCODER_VIDEO_CODEC"`
	EncoderPreset         string `help:"Encoder preset" default:"veryfast" toml:"encoder.preset" env:"ENCODER_PRESET"`
	EncoderTune           string `help:"Encoder tune" default:"zerolatency" toml:"encoder.tune" env:"ENCODER_TUNE"`
	EncoderBitrate        string `help:"Video bitrate" default:"2500k" toml:"encoder.bitrate" env:"ENCODER_BITRATE"`
	EncoderGOP            int    `help:"Keyframe interval in frames" default:"60" toml:"encoder.gop" env:"ENCODER_GOP"`
	EncoderAudioBitrate   string `help:"Audio bitrate" default:"128k" toml:"encoder.audio_bitrate" env:"ENCODER_AUDIO_BITRATE"`
	EncoderCommand        string `help:"Full encoder command override; {target} is replaced by the RTMP URL" default:"" toml:"encoder.command" env:"ENCODER_COMMAND"`
	EncoderQueueSize      int    `help:"Chunks buffered between publishers and encoder stdin" default:"256" toml:"encoder.queue_size" env:"ENCODER_QUEUE_SIZE"`
	EncoderGracePeriod    string `help:"Wait after SIGINT before SIGKILL" default:"5s" toml:"encoder.grace_period" env:"ENCODER_GRACE_PERIOD"`
	EncoderKillTimeout    string `help:"Wait after SIGKILL" default:"5s" toml:"encoder.kill_timeout" env:"ENCODER_KILL_TIMEOUT"`
	EncoderRespawnBackoff string `help:"Minimum time between respawn attempts" default:"2s" toml:"encoder.respawn_backoff" env:"ENCODER_RESPAWN_BACKOFF"`

	// Ingest settings
	IngestMaxPublishers   int    `help:"Concurrent publishers (0 = unlimited)" default:"1" toml:"ingest.max_publishers" env:"INGEST_MAX_PUBLISHERS"`
	IngestMaxMessageBytes int    `help:"Largest accepted WebSocket message" default:"4194304" toml:"ingest.max_message_bytes" env:"INGEST_MAX_MESSAGE_BYTES"`
	IngestPingInterval    string `help:"WebSocket ping interval" default:"20s" toml:"ingest.ping_interval" env:"INGEST_PING_INTERVAL"`
	IngestOrigins         string `help:"Comma-separated allowed WebSocket origins (empty allows any)" default:"" toml:"ingest.allowed_origins" env:"INGEST_ALLOWED_ORIGINS"`

	// Gateway settings
	GatewayKeyPolicy string `help:"Stream key policy (accept-all, match)" default:"accept-all" toml:"gateway.key_policy" env:"GATEWAY_KEY_POLICY"`
	GatewayHookToken string `help:"Shared token required on gateway hooks" default:"" toml:"gateway.hook_token" env:"GATEWAY_HOOK_TOKEN"`

	// Calendar settings
	CalendarFile  string `help:"Calendar JSON file" default:"events.json" toml:"calendar.file" env:"CALENDAR_FILE"`
	CalendarWatch bool   `help:"Reload the calendar when the file is edited" default:"true" toml:"calendar.watch" env:"CALENDAR_WATCH"`

	// Metrics settings
	MetricsEnabled bool `help:"Expose Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingBufferSize int    `help:"Log lines kept for the log stream" default:"1000" toml:"logging.buffer_size" env:"LOGGING_BUFFER_SIZE"`
	LoggingEncoder    string `help:"Encoder supervisor logging level" default:"info" toml:"logging.encoder" env:"LOGGING_ENCODER"`
	LoggingFFmpeg     string `help:"ffmpeg output logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingIngest     string `help:"Ingest bridge logging level" default:"info" toml:"logging.ingest" env:"LOGGING_INGEST"`
	LoggingGateway    string `help:"Gateway hooks logging level" default:"info" toml:"logging.gateway" env:"LOGGING_GATEWAY"`
	LoggingStatus     string `help:"Status probe logging level" default:"info" toml:"logging.status" env:"LOGGING_STATUS"`
	LoggingCalendar   string `help:"Calendar logging level" default:"info" toml:"logging.calendar" env:"LOGGING_CALENDAR"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP       string `help:"HTTP access logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func main() {
	var root *cobra.Command
	// Parsed options, also read by subcommands after the root pre-run
	var current *Options

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		current = opts
		if envErr := config.LoadDotEnv(); envErr != nil {
			slog.Warn("Failed to load .env", "error", envErr)
		}
		if loadErr := config.LoadConfig(opts, root); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		eventBus := events.New()

		logging.Initialize(logging.Config{
			Level:      opts.LoggingLevel,
			Format:     opts.LoggingFormat,
			BufferSize: opts.LoggingBufferSize,
			Modules: map[string]string{
				"encoder":  opts.LoggingEncoder,
				"ffmpeg":   opts.LoggingFFmpeg,
				"ingest":   opts.LoggingIngest,
				"gateway":  opts.LoggingGateway,
				"status":   opts.LoggingStatus,
				"calendar": opts.LoggingCalendar,
				"api":      opts.LoggingAPI,
				"http":     opts.LoggingHTTP,
			},
			Secrets: []string{opts.RTMPStreamKey, opts.AuthPassword, opts.GatewayHookToken},
		})
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		logger := logging.GetLogger("main")

		statusAgg := status.New(statusConfig(opts), nil)

		supervisor, err := encoder.New(encoderConfig(opts), eventBus)
		if err != nil {
			logger.Error("Invalid encoder configuration", "error", err)
			os.Exit(1)
		}

		policy, err := gateway.NewPolicy(opts.GatewayKeyPolicy, opts.RTMPStreamKey, logging.GetLogger("gateway"))
		if err != nil {
			logger.Error("Invalid gateway configuration", "error", err)
			os.Exit(1)
		}
		if policy.Name() == gateway.PolicyAcceptAll {
			logger.Warn("Gateway accepts any stream key, set gateway.key_policy = \"match\" to validate keys")
		}
		gw := gateway.New(policy, eventBus)

		bridge := ingest.New(supervisor, ingest.Config{
			MaxMessageBytes: int64(opts.IngestMaxMessageBytes),
			PingInterval:    parseDuration(logger, "ingest.ping_interval", opts.IngestPingInterval, ingest.DefaultPingInterval),
			AllowedOrigins:  splitList(opts.IngestOrigins),
		}, eventBus)

		store, err := calendar.Open(opts.CalendarFile, eventBus)
		if err != nil {
			logger.Error("Failed to load calendar", "error", err, "path", opts.CalendarFile)
			os.Exit(1)
		}

		server := api.NewServer(&api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			AuthDisabled: opts.AuthDisabled,
			CORSOrigins:  splitList(opts.CORSOrigins),
			EventBus:     eventBus,
			Status:       statusAgg,
			Supervisor:   supervisor,
			Ingest:       bridge,
			Gateway:      gw,
			HookToken:    opts.GatewayHookToken,
			Calendar:     store,
			Metrics:      opts.MetricsEnabled,
		})

		hooks.OnStart(func() {
			logger.Info("Starting livebridge", "version", version.String(), "config", opts.Config)

			if opts.AuthPassword == "" && !opts.AuthDisabled {
				logger.Error("Admin password not set, configure auth.password or set auth.disabled = true")
				os.Exit(1)
			}

			if opts.CalendarWatch {
				if watchErr := store.Watch(0); watchErr != nil {
					logger.Warn("Calendar hot reload disabled", "error", watchErr)
				}
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			// Publishers first so their leases are released before the encoder stops
			if stopErr := bridge.Shutdown(ctx); stopErr != nil {
				logger.Warn("Error closing publishers", "error", stopErr)
			}
			if stopErr := server.Shutdown(ctx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if stopErr := supervisor.Close(ctx); stopErr != nil {
				logger.Error("Error stopping encoder", "error", stopErr)
			}
			if stopErr := store.Close(); stopErr != nil {
				logger.Warn("Error stopping calendar watcher", "error", stopErr)
			}
		})
	})

	root = cli.Root()
	root.Use = "livebridge"
	root.Short = "Browser-to-RTMP live bridge with stream status and calendar API"
	root.Version = version.String()

	root.AddCommand(cmd.CreateStatusCmd(func() status.Config { return statusConfig(current) }))
	root.AddCommand(cmd.CreateEncoderArgsCmd(func() encoder.Config { return encoderConfig(current) }))

	cli.Run()
}

func statusConfig(opts *Options) status.Config {
	logger := logging.GetLogger("main")
	return status.Config{
		ServerURL:      opts.StreamServerURL,
		SRSAPIURL:      opts.StreamSRSURL,
		OwncastURL:     opts.StreamOwncastURL,
		HLSBaseURL:     opts.StreamHLSBase,
		StreamName:     opts.StreamName,
		StreamTitle:    opts.StreamTitle,
		RTMPURL:        opts.RTMPURL,
		StreamKey:      opts.RTMPStreamKey,
		SRSTimeout:     parseDuration(logger, "stream.srs_timeout", opts.StreamSRSTimeout, status.DefaultSRSTimeout),
		OwncastTimeout: parseDuration(logger, "stream.owncast_timeout", opts.StreamOwncastTimeout, status.DefaultOwncastTimeout),
	}
}

func encoderConfig(opts *Options) encoder.Config {
	logger := logging.GetLogger("main")
	return encoder.Config{
		RTMPURL:   opts.RTMPURL,
		StreamKey: opts.RTMPStreamKey,
		Params: ffmpeg.Params{
			Binary:       opts.EncoderBinary,
			InputFormat:  opts.EncoderInputFormat,
			Encoder:      opts.EncoderVideoCodec,
			Preset:       opts.EncoderPreset,
			Tune:         opts.EncoderTune,
			Bitrate:      opts.EncoderBitrate,
			GOP:          opts.EncoderGOP,
			AudioBitrate: opts.EncoderAudioBitrate,
		},
		Command:        opts.EncoderCommand,
		MaxPublishers:  opts.IngestMaxPublishers,
		QueueSize:      opts.EncoderQueueSize,
		GracePeriod:    parseDuration(logger, "encoder.grace_period", opts.EncoderGracePeriod, encoder.DefaultGracePeriod),
		KillTimeout:    parseDuration(logger, "encoder.kill_timeout", opts.EncoderKillTimeout, encoder.DefaultKillTimeout),
		RespawnBackoff: parseDuration(logger, "encoder.respawn_backoff", opts.EncoderRespawnBackoff, encoder.DefaultRespawnBackoff),
	}
}

func parseDuration(logger *slog.Logger, key, value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		logger.Warn("Invalid duration, using default", "key", key, "value", value, "default", fallback)
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
