// Package logging provides structured logging with per-module log level configuration.
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"resolve":  "debug", // Per-module overrides
//			"encoders": "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("resolve")
//	logger.Info("config resolved", "device", id)
//	logger.Debug("details", "config", cfg)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("resolve").With("device", id)
//	logger.Info("session opened") // Includes device in all logs
//
// # Output Destinations
//
// Records go to stdout (text or JSON per the Format setting) and to an
// in-memory ring buffer holding recent history for the /api/logs endpoint.
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	resolve = "debug"
//	encoders = "warn"
package logging
