// Package logging configures slog for livebridge.
//
// Every component asks for a module logger once and keeps it:
//
//	logger := logging.GetLogger("encoder")
//	logger.Info("Encoder started", "pid", pid)
//
// Module levels are resolved from Config.Modules, falling back to
// Config.Level, and can be changed at runtime with SetModuleLevel.
// Loggers obtained before Initialize log at info to stdout and are
// rebuilt in place when Initialize runs.
//
// Records fan out to up to three sinks:
//
//	stdout   text or json, skipped when stdout is /dev/null or closed
//	journal  when journald is reachable (journalctl -t livebridge MODULE=ingest)
//	history  an in-memory RingBuffer behind GET /api/logs/stream
//
// Values listed in Config.Secrets (stream key, admin password, hook
// token) are replaced with "***" in messages and string attributes
// before any sink sees them.
//
// Example TOML:
//
//	[logging]
//	level = "info"
//	format = "json"
//	buffer_size = 500
//
//	[logging.modules]
//	ffmpeg = "warn"
//	ingest = "debug"
package logging
