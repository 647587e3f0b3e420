package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/loopcast/cmd"
	"github.com/smazurov/loopcast/internal/api"
	"github.com/smazurov/loopcast/internal/config"
	"github.com/smazurov/loopcast/internal/events"
	"github.com/smazurov/loopcast/internal/ffmpeg"
	"github.com/smazurov/loopcast/internal/logging"
	"github.com/smazurov/loopcast/internal/metrics"
	"github.com/smazurov/loopcast/internal/notify"
	"github.com/smazurov/loopcast/internal/session"
	"github.com/smazurov/loopcast/internal/systemd"
)

// shutdownTimeout bounds how long in-flight HTTP requests may finish after a
// stop signal.
const shutdownTimeout = 10 * time.Second

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config  string `help:"Path to configuration file" short:"c" default:"config.toml"`
	EnvFile string `help:"Dotenv file loaded before the environment is read" default:".env"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":5000" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthHeader string `help:"Request header carrying the API token" default:"Authentication" toml:"auth.header" env:"AUTH_HEADER"`
	AuthToken  string `help:"Shared API token (empty disables auth)" toml:"auth.token" env:"TOKEN"`

	// Streaming settings
	RTMPBaseURL string `help:"RTMP ingest base URL; the stream key is appended" default:"rtmp://a.rtmp.youtube.com/live2" toml:"streaming.rtmp_base_url" env:"RTMP_BASE_URL"`
	FFmpegPath  string `help:"ffmpeg executable" default:"ffmpeg" toml:"streaming.ffmpeg_path" env:"FFMPEG_PATH"`
	GracePeriod string `help:"Time ffmpeg gets to exit after SIGINT" default:"5s" toml:"streaming.grace_period" env:"GRACE_PERIOD"`
	KillTimeout string `help:"Time ffmpeg gets to exit after SIGKILL" default:"5s" toml:"streaming.kill_timeout" env:"KILL_TIMEOUT"`

	// Metrics settings
	MetricsEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Notification settings
	RedisAddr     string `help:"Redis address, or comma-separated addresses, for lifecycle notifications (empty disables)" toml:"notify.redis_addr" env:"REDIS_ADDR"`
	RedisUsername string `help:"Redis ACL username" toml:"notify.redis_username" env:"REDIS_USERNAME"`
	RedisPassword string `help:"Redis password" toml:"notify.redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `help:"Redis database number" default:"0" toml:"notify.redis_db" env:"REDIS_DB"`
	RedisStream   string `help:"Redis stream receiving lifecycle events" default:"loopcast:sessions" toml:"notify.redis_stream" env:"REDIS_STREAM"`
	RedisMaxLen   int64  `help:"Approximate maximum length of the Redis stream" default:"10000" toml:"notify.redis_max_len" env:"REDIS_MAX_LEN"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSession string `help:"Session manager logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingFFmpeg  string `help:"ffmpeg output logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	settings := &cmd.Settings{}

	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if envErr := config.LoadDotEnv(opts.EnvFile); envErr != nil {
			slog.Warn("Failed to load env file", "error", envErr)
		}

		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}
		// Existing .env files carry the token as plain TOKEN
		if opts.AuthToken == "" {
			opts.AuthToken = os.Getenv("TOKEN")
		}

		settings.ConfigPath = opts.Config
		settings.FFmpegPath = opts.FFmpegPath
		settings.RTMPBaseURL = opts.RTMPBaseURL

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"session": opts.LoggingSession,
				"process": opts.LoggingSession,
				"ffmpeg":  opts.LoggingFFmpeg,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingAPI,
			},
		})

		logger := logging.GetLogger("main")

		eventBus := events.New()

		// Encoding defaults, reloaded whenever the config file changes
		defaults, encErr := config.LoadEncodingDefaults(opts.Config)
		if encErr != nil {
			logger.Warn("Invalid encoding defaults, using built-in values", "error", encErr)
		}
		encodingStore := config.NewEncodingStore(defaults)

		configLogger := logging.GetLogger("config")
		watcher := config.NewConfigWatcher(opts.Config, config.LoadEncodingDefaults, configLogger,
			config.WithErrorHandler[ffmpeg.EncodingParams](func(err error) {
				configLogger.Warn("Keeping previous encoding defaults", "error", err)
			}),
		)
		watcher.OnReload(func(params ffmpeg.EncodingParams) {
			encodingStore.Set(params)
			eventBus.Publish(events.EncodingDefaultsReloadedEvent{
				Path:      opts.Config,
				Timestamp: time.Now().Format(time.RFC3339),
			})
		})

		manager := session.NewManager(&session.ManagerOptions{
			Launcher: &session.ProcessLauncher{
				Binary: opts.FFmpegPath,
			},
			DestinationBase: opts.RTMPBaseURL,
			GracePeriod:     parseDuration(logger, "grace-period", opts.GracePeriod, session.DefaultGracePeriod),
			KillTimeout:     parseDuration(logger, "kill-timeout", opts.KillTimeout, session.DefaultKillTimeout),
			EventBus:        eventBus,
		})

		// Keep the systemd status line in step with the live session count
		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
		eventBus.Subscribe(func(events.SessionStateChangedEvent) {
			notifier.Status("%d live streams", len(manager.List()))
		})

		// Optional Redis Streams sink for lifecycle events
		var forwarder *notify.Forwarder
		if opts.RedisAddr != "" {
			sink, sinkErr := notify.NewRedisSink(notify.RedisConfig{
				Addr:     opts.RedisAddr,
				Username: opts.RedisUsername,
				Password: opts.RedisPassword,
				DB:       opts.RedisDB,
				Stream:   opts.RedisStream,
				MaxLen:   opts.RedisMaxLen,
				Logger:   logging.GetLogger("notify"),
			})
			if sinkErr != nil {
				logger.Error("Redis notifications disabled", "error", sinkErr)
			} else {
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
				if pingErr := sink.Ping(pingCtx); pingErr != nil {
					logger.Warn("Redis unreachable, notifications will be retried per event", "addr", opts.RedisAddr, "error", pingErr)
				}
				cancelPing()
				forwarder = notify.NewForwarder(eventBus, logging.GetLogger("notify"), sink)
			}
		}

		apiOpts := &api.Options{
			Manager:    manager,
			Encoding:   encodingStore,
			EventBus:   eventBus,
			AuthHeader: opts.AuthHeader,
			AuthToken:  opts.AuthToken,
		}
		if opts.MetricsEnabled {
			apiOpts.MetricsHandler = metrics.Handler()
		}
		server := api.NewServer(apiOpts)

		forwardCtx, cancelForward := context.WithCancel(context.Background())
		forwardDone := make(chan struct{})

		hooks.OnStart(func() {
			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Config hot reload disabled", "path", opts.Config, "error", startErr)
			}

			if forwarder != nil {
				go func() {
					defer close(forwardDone)
					if runErr := forwarder.Run(forwardCtx); runErr != nil {
						logger.Warn("Notification forwarder stopped", "error", runErr)
					}
				}()
			} else {
				close(forwardDone)
			}

			notifier.Ready()
			notifier.Status("0 live streams")

			logger.Info("Starting HTTP server", "port", opts.Port, "rtmp_base_url", opts.RTMPBaseURL)
			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if stopErr := server.Stop(ctx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Stop all ffmpeg processes after the HTTP server stops accepting requests
			logger.Info("Stopping all streams")
			if stopErr := manager.StopAll(context.Background()); stopErr != nil {
				logger.Error("Error stopping streams", "error", stopErr)
			}

			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}

			// Stop forwarding; Run closes the sinks on its way out
			cancelForward()
			<-forwardDone
			if closeErr := eventBus.Close(); closeErr != nil {
				logger.Warn("Error closing event bus", "error", closeErr)
			}
		})
	})

	cli.Root().Use = "loopcast"
	cli.Root().Short = "Loop local video files to RTMP ingest endpoints"

	cli.Root().AddCommand(cmd.CreateCommandCmd(settings))
	cli.Root().AddCommand(cmd.CreateCheckCmd(settings))

	// Run the CLI
	cli.Run()
}

// parseDuration falls back to def when value is empty or malformed.
func parseDuration(logger *slog.Logger, name, value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		logger.Warn("Invalid duration, using default", "option", name, "value", value, "default", def)
		return def
	}
	return d
}
