package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/capturecfg/cmd"
	"github.com/smazurov/capturecfg/internal/api"
	"github.com/smazurov/capturecfg/internal/bitrate"
	"github.com/smazurov/capturecfg/internal/capability"
	"github.com/smazurov/capturecfg/internal/capsource"
	"github.com/smazurov/capturecfg/internal/config"
	"github.com/smazurov/capturecfg/internal/encoders"
	"github.com/smazurov/capturecfg/internal/events"
	"github.com/smazurov/capturecfg/internal/logging"
	"github.com/smazurov/capturecfg/internal/metrics/exporters"
	"github.com/smazurov/capturecfg/internal/resolve"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Capability source settings
	CapabilitySource string `help:"Capability source (file, v4l2)" default:"file" toml:"capabilities.source" env:"CAPABILITIES_SOURCE"`
	CapabilitiesFile string `help:"Device capabilities file" default:"capabilities.toml" toml:"capabilities.file" env:"CAPABILITIES_FILE"`

	// Encoder settings
	AvailabilityFile string `help:"Encoder availability snapshot file" default:"encoder_availability.toml" toml:"encoders.availability_file" env:"ENCODERS_AVAILABILITY_FILE"`

	// Persistence settings
	ConfigStoreFile string `help:"Committed device configuration store" default:"device_configs.toml" toml:"store.file" env:"STORE_FILE"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel        string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat       string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingResolve      string `help:"Resolution engine logging level" default:"info" toml:"logging.resolve" env:"LOGGING_RESOLVE"`
	LoggingEncoders     string `help:"Encoders logging level" default:"info" toml:"logging.encoders" env:"LOGGING_ENCODERS"`
	LoggingBitrate      string `help:"Bitrate estimator logging level" default:"info" toml:"logging.bitrate" env:"LOGGING_BITRATE"`
	LoggingCapabilities string `help:"Capability source logging level" default:"info" toml:"logging.capabilities" env:"LOGGING_CAPABILITIES"`
	LoggingAPI          string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingConfig       string `help:"Config watcher logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
}

func main() {
	// Declared before New so the callback can see which flags were
	// explicitly set on the root command; it only runs inside cli.Run().
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically, keeping CLI-set flags
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"resolve":      opts.LoggingResolve,
				"encoders":     opts.LoggingEncoders,
				"bitrate":      opts.LoggingBitrate,
				"capabilities": opts.LoggingCapabilities,
				"api":          opts.LoggingAPI,
				"config":       opts.LoggingConfig,
			},
		})

		logger := logging.GetLogger("main")

		// Event bus for in-process event handling and SSE fan-out
		eventBus := events.New()

		// Capability source: TOML file by default, v4l2-ctl when asked
		var source capability.Source
		var capsWatcher *config.Watcher[map[string]capability.DeviceCapabilities]
		switch opts.CapabilitySource {
		case "v4l2":
			source = capsource.NewV4L2Source(logging.GetLogger("capabilities"))
		default:
			source = capsource.NewFileSource(opts.CapabilitiesFile, logging.GetLogger("capabilities"))
			capsWatcher = config.NewConfigWatcher(opts.CapabilitiesFile,
				capsource.LoadCapabilitiesFile, logging.GetLogger("config"))
		}

		// Encoder probe and bitrate estimator
		probe := encoders.NewLocalProbe(logging.GetLogger("encoders"))
		estimator := bitrate.NewEstimator(probe, logging.GetLogger("bitrate"))

		// Session manager with committed-config persistence
		store := resolve.NewConfigStore(opts.ConfigStoreFile)
		manager := resolve.NewManager(source, estimator, eventBus, store,
			logging.GetLogger("resolve"))

		// Adopt the last probe snapshot if one exists; the API and the
		// availability watcher replace it at runtime.
		availStore := encoders.NewStore(opts.AvailabilityFile)
		if avail, err := availStore.Load(); err != nil {
			logger.Warn("No encoder availability snapshot, run probe-encoders", "error", err)
		} else {
			manager.SetAvailability(avail)
		}

		availWatcher := config.NewConfigWatcher(opts.AvailabilityFile,
			func(path string) (*encoders.Availability, error) {
				return encoders.NewStore(path).Load()
			}, logging.GetLogger("config"))
		availWatcher.OnReload(func(avail *encoders.Availability) {
			logger.Info("Encoder availability snapshot changed, pushing to sessions")
			manager.SetAvailability(avail)
		})

		if capsWatcher != nil {
			capsWatcher.OnReload(func(caps map[string]capability.DeviceCapabilities) {
				logger.Info("Capabilities file changed, refreshing sessions",
					"devices", len(caps))
				for _, deviceID := range manager.Devices() {
					sess, ok := manager.Get(deviceID)
					if !ok {
						continue
					}
					if err := sess.RefreshCapabilities(context.Background()); err != nil {
						logger.Warn("Capability refresh failed",
							"device", deviceID, "error", err)
					}
				}
			})
		}

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Manager:           manager,
			Probe:             probe,
			AvailabilityStore: availStore,
			EventBus:          eventBus,
			PrometheusHandler: exporters.HTTPHandler(),
		})

		hooks.OnStart(func() {
			if err := availWatcher.Start(); err != nil {
				logger.Warn("Could not watch availability snapshot", "error", err)
			}
			if capsWatcher != nil {
				if err := capsWatcher.Start(); err != nil {
					logger.Warn("Could not watch capabilities file", "error", err)
				}
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if err := server.Start(opts.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if err := server.Stop(); err != nil {
				logger.Error("Error stopping HTTP server", "error", err)
			}
			if capsWatcher != nil {
				if err := capsWatcher.Stop(); err != nil {
					logger.Warn("Error stopping capabilities watcher", "error", err)
				}
			}
			if err := availWatcher.Stop(); err != nil {
				logger.Warn("Error stopping availability watcher", "error", err)
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateProbeEncodersCmd())

	cli.Run()
}
