// Package logging configures log/slog for the host tools. Every component
// asks for a module logger so its lines carry a module attribute and its
// level can be raised on its own.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config is the logging section of a simulation profile or the CLI flags.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mutex         sync.RWMutex
	globalConfig  Config
	output        io.Writer = os.Stdout
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevels  = make(map[string]*slog.LevelVar)
)

// Initialize applies config to the default logger and every module logger
// created so far.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	for module, lv := range moduleLevels {
		lv.Set(levelFor(module))
		moduleLoggers[module] = slog.New(createHandler(config.Format, lv)).With("module", module)
	}
	global := &slog.LevelVar{}
	global.Set(levelFor(""))
	slog.SetDefault(slog.New(createHandler(config.Format, global)))
}

// SetOutput redirects every logger created afterwards. Tests use it to
// capture log lines.
func SetOutput(w io.Writer) {
	mutex.Lock()
	output = w
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevels = make(map[string]*slog.LevelVar)
	mutex.Unlock()
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	logger, ok := moduleLoggers[module]
	mutex.RUnlock()
	if ok {
		return logger
	}

	mutex.Lock()
	defer mutex.Unlock()
	if logger, ok := moduleLoggers[module]; ok {
		return logger
	}
	lv := &slog.LevelVar{}
	lv.Set(levelFor(module))
	logger = slog.New(createHandler(globalConfig.Format, lv)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevels[module] = lv
	return logger
}

// levelFor must be called with mutex held.
func levelFor(module string) slog.Level {
	level := slog.LevelInfo
	if l := parseLevel(globalConfig.Level); l != nil {
		level = *l
	}
	if s, ok := globalConfig.Modules[module]; ok && module != "" {
		if l := parseLevel(s); l != nil {
			level = *l
		}
	}
	return level
}

func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(output, opts)
	}
	return slog.NewTextHandler(output, opts)
}

// parseLevel converts a level name to a slog.Level, nil when unknown.
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
