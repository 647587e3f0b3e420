package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coreos/go-systemd/v22/journal"
)

// Identifier is the syslog identifier used for journal entries.
const Identifier = "loopcast"

// Logger is a duck-typed interface satisfied by *slog.Logger.
// Use this interface instead of *slog.Logger to decouple from the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// allLevels lets every record through the output handlers; filtering is done
// per module by levelHandler.
const allLevels = slog.LevelDebug - 4

type handlerBox struct{ h slog.Handler }

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{} // default level
	isInitialized   bool
	mutex           sync.RWMutex

	// output is where text/json records go. Replaced in tests.
	output io.Writer = os.Stdout

	// journalAvailable reports whether records are copied to journald.
	journalAvailable = journal.Enabled

	// base is the output handler shared by every logger. Initialize swaps it,
	// so loggers obtained earlier pick up the configured format.
	base atomic.Pointer[handlerBox]
)

func init() {
	base.Store(&handlerBox{slog.NewTextHandler(output, &slog.HandlerOptions{Level: allLevels})})
}

// Initialize sets up the logging system.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true

	globalLevel := levelOrDefault(config.Level, slog.LevelInfo)
	globalLevelVar.Set(globalLevel)

	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(module))
	}

	base.Store(&handlerBox{createHandler(config.Format, output)})
	slog.SetDefault(slog.New(&levelHandler{level: globalLevelVar}))
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, exists := moduleLoggers[module]; exists {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	// Double-check in case another goroutine created it
	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	// A LevelVar per module so the level can change at runtime
	levelVar := &slog.LevelVar{}
	levelVar.Set(moduleLevel(module))

	logger := slog.New(&levelHandler{level: levelVar}).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// SetModuleLevel changes the level of one module at runtime.
func SetModuleLevel(module, level string) error {
	parsed := parseLevel(level)
	if parsed == nil {
		return fmt.Errorf("unknown log level %q", level)
	}

	GetLogger(module)

	mutex.Lock()
	defer mutex.Unlock()
	moduleLevelVars[module].Set(*parsed)
	if globalConfig.Modules == nil {
		globalConfig.Modules = make(map[string]string)
	}
	globalConfig.Modules[module] = level
	return nil
}

// moduleLevel resolves the configured level of a module. Callers hold mutex.
func moduleLevel(module string) slog.Level {
	if !isInitialized {
		return slog.LevelInfo
	}
	level := levelOrDefault(globalConfig.Level, slog.LevelInfo)
	if levelStr, exists := globalConfig.Modules[module]; exists {
		level = levelOrDefault(levelStr, level)
	}
	return level
}

// createHandler builds the output chain: w (when it is usable) and the
// systemd journal (when available).
func createHandler(format string, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: allLevels}

	var streamHandler slog.Handler
	if format == "json" {
		streamHandler = slog.NewJSONHandler(w, opts)
	} else {
		streamHandler = slog.NewTextHandler(w, opts)
	}

	var next slog.Handler
	if w != os.Stdout || isStdoutAvailable() {
		next = streamHandler
	}
	if journalAvailable() {
		return newJournalTee(next)
	}
	return streamHandler
}

// levelHandler filters records by a module level and forwards them to the
// current base handler with the logger's attributes and groups applied.
type levelHandler struct {
	level slog.Leveler
	wraps []func(slog.Handler) slog.Handler
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	out := base.Load().h
	for _, wrap := range h.wraps {
		out = wrap(out)
	}
	return out.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.with(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

func (h *levelHandler) with(wrap func(slog.Handler) slog.Handler) *levelHandler {
	wraps := make([]func(slog.Handler) slog.Handler, len(h.wraps), len(h.wraps)+1)
	copy(wraps, h.wraps)
	return &levelHandler{level: h.level, wraps: append(wraps, wrap)}
}

// isStdoutAvailable checks if stdout is connected to a terminal, pipe, socket, or file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	// Available if terminal, pipe, socket, or regular file (not /dev/null which is ModeDevice)
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

func levelOrDefault(level string, def slog.Level) slog.Level {
	if parsed := parseLevel(level); parsed != nil {
		return *parsed
	}
	return def
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
