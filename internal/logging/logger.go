package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const defaultBufferSize = 1000

// Config holds the logging settings.
type Config struct {
	Level      string            `toml:"level"`
	Format     string            `toml:"format"`
	Modules    map[string]string `toml:"modules"`
	BufferSize int               `toml:"buffer_size"`

	// Secrets are masked in every sink. Empty values are ignored.
	Secrets []string `toml:"-"`
}

type moduleLogger struct {
	level  *slog.LevelVar
	logger *slog.Logger
}

var (
	mu          sync.RWMutex
	current     Config
	initialized bool
	modules     = make(map[string]*moduleLogger)
	history     *RingBuffer
	onEntry     LogCallback

	// Read from handlers while mu is held by Initialize and GetLogger.
	redactor atomic.Pointer[Redactor]
)

// Initialize applies cfg to the default logger and to every module
// logger handed out so far.
func Initialize(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	current = cfg
	initialized = true
	history = NewRingBuffer(cfg.BufferSize)
	redactor.Store(NewRedactor(cfg.Secrets...))

	for name, m := range modules {
		m.level.Set(levelForLocked(name))
		m.logger = slog.New(buildHandler(cfg.Format, m.level)).With("module", name)
	}

	global := &slog.LevelVar{}
	global.Set(levelForLocked(""))
	slog.SetDefault(slog.New(buildHandler(cfg.Format, global)))
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	m, ok := modules[module]
	mu.RUnlock()
	if ok {
		return m.logger
	}

	mu.Lock()
	defer mu.Unlock()
	if m, ok := modules[module]; ok {
		return m.logger
	}

	level := &slog.LevelVar{}
	level.Set(levelForLocked(module))
	format := "text"
	if initialized {
		format = current.Format
	}

	m = &moduleLogger{
		level:  level,
		logger: slog.New(buildHandler(format, level)).With("module", module),
	}
	modules[module] = m
	return m.logger
}

// SetModuleLevel changes a module level at runtime. It reports false
// for an unknown level name.
func SetModuleLevel(module, level string) bool {
	parsed, ok := parseLevel(level)
	if !ok {
		return false
	}
	GetLogger(module)

	mu.Lock()
	defer mu.Unlock()
	modules[module].level.Set(parsed)
	if current.Modules == nil {
		current.Modules = make(map[string]string)
	}
	current.Modules[module] = level
	return true
}

// GetBuffer returns the log history, or nil before Initialize.
func GetBuffer() *RingBuffer {
	mu.RLock()
	defer mu.RUnlock()
	return history
}

// SetLogCallback registers fn to receive every buffered entry.
func SetLogCallback(fn LogCallback) {
	mu.Lock()
	defer mu.Unlock()
	onEntry = fn
}

// levelForLocked resolves a module level. The empty module name yields
// the global level. Caller must hold mu.
func levelForLocked(module string) slog.Level {
	if !initialized {
		return slog.LevelInfo
	}
	if module != "" {
		if lvl, ok := parseLevel(current.Modules[module]); ok {
			return lvl
		}
	}
	if lvl, ok := parseLevel(current.Level); ok {
		return lvl
	}
	return slog.LevelInfo
}

// buildHandler assembles the sink chain for one logger.
func buildHandler(format string, level slog.Leveler) slog.Handler {
	var sinks []slog.Handler
	if stdoutUsable() {
		opts := &slog.HandlerOptions{Level: level}
		if format == "json" {
			sinks = append(sinks, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			sinks = append(sinks, slog.NewTextHandler(os.Stdout, opts))
		}
	}
	if journalEnabled() {
		sinks = append(sinks, newJournalHandler(level))
	}
	sinks = append(sinks, newBufferHandler(level))

	return newRedactHandler(newFanout(sinks...), currentRedactor)
}

func currentRedactor() *Redactor {
	return redactor.Load()
}

// stdoutUsable reports whether stdout is a terminal, pipe, socket or file.
func stdoutUsable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode.IsRegular() || mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}

// levelName is the lowercase level used in buffered entries.
func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
