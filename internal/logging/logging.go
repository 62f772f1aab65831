// Package logging builds the process slog.Logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text, pretty
	File   FileConfig
}

// FileConfig adds a rotated JSON log file next to the terminal output.
type FileConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func New(c Config) *slog.Logger {
	return NewWithWriter(c, os.Stderr)
}

func NewWithWriter(c Config, w io.Writer) *slog.Logger {
	level := parseLevel(c.Level)
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: NewReplaceAttr(),
	}

	var h slog.Handler
	switch strings.ToLower(c.Format) {
	case "text":
		h = slog.NewTextHandler(w, opts)
	case "pretty":
		h = newRedactHandler(log.NewWithOptions(w, log.Options{
			Level:           slogToCharmLevel(level),
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
		}))
	default:
		h = slog.NewJSONHandler(w, opts)
	}

	if c.File.Enabled && c.File.Path != "" {
		f := &lumberjack.Logger{
			Filename:   c.File.Path,
			MaxSize:    c.File.MaxSizeMB,
			MaxBackups: c.File.MaxBackups,
			MaxAge:     c.File.MaxAgeDays,
			Compress:   c.File.Compress,
		}
		h = NewMultiHandler(h, slog.NewJSONHandler(f, opts))
	}

	return slog.New(h)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func slogToCharmLevel(level slog.Level) log.Level {
	switch {
	case level < slog.LevelInfo:
		return log.DebugLevel
	case level < slog.LevelWarn:
		return log.InfoLevel
	case level < slog.LevelError:
		return log.WarnLevel
	default:
		return log.ErrorLevel
	}
}
