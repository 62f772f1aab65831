package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	tests := map[string]struct {
		format string
		assert func(t *testing.T, out string)
	}{
		"json": {
			format: "json",
			assert: func(t *testing.T, out string) {
				var entry map[string]any
				require.NoError(t, json.Unmarshal([]byte(out), &entry))
				assert.Equal(t, "quiz started", entry["msg"])
				assert.Equal(t, "g1", entry["groupId"])
			},
		},
		"text": {
			format: "text",
			assert: func(t *testing.T, out string) {
				assert.Contains(t, out, `msg="quiz started"`)
				assert.Contains(t, out, "groupId=g1")
			},
		},
		"pretty": {
			format: "pretty",
			assert: func(t *testing.T, out string) {
				assert.Contains(t, out, "quiz started")
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWithWriter(Config{Level: "info", Format: tt.format}, &buf)

			l.Debug("hidden")
			l.Info("quiz started", "groupId", "g1")

			assert.NotContains(t, buf.String(), "hidden")
			tt.assert(t, buf.String())
		})
	}
}

func TestNewWithWriter_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotient.log")

	var buf bytes.Buffer
	l := NewWithWriter(Config{
		Format: "text",
		File:   FileConfig{Enabled: true, Path: path, MaxSizeMB: 1},
	}, &buf)

	l.Info("result recorded", "score", 80)

	assert.Contains(t, buf.String(), "result recorded")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"result recorded"`)
}

func TestRedaction(t *testing.T) {
	type login struct {
		Email    string
		Password string
	}

	for _, format := range []string{"json", "text", "pretty"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWithWriter(Config{Format: format}, &buf)

			l.Info("login", "secret", "s3cr3t", "authorization", "Bearer abc", "req", login{Email: "ada@example.com", Password: "hunter2"})
			l.With("password", "pa55").WithGroup("identity").Info("session opened", "secret", "xyz789", "user", "u1")

			out := buf.String()
			assert.NotContains(t, out, "s3cr3t")
			assert.NotContains(t, out, "hunter2")
			assert.NotContains(t, out, "Bearer abc")
			assert.NotContains(t, out, "pa55")
			assert.NotContains(t, out, "xyz789")
			assert.Contains(t, out, "ada@example.com")
			assert.Contains(t, out, "u1")
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}

	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, parseLevel(in))
		})
	}
}

func TestSlogToCharmLevel(t *testing.T) {
	assert.Equal(t, log.DebugLevel, slogToCharmLevel(slog.Level(-8)))
	assert.Equal(t, log.DebugLevel, slogToCharmLevel(slog.LevelDebug))
	assert.Equal(t, log.InfoLevel, slogToCharmLevel(slog.LevelInfo))
	assert.Equal(t, log.WarnLevel, slogToCharmLevel(slog.LevelWarn))
	assert.Equal(t, log.ErrorLevel, slogToCharmLevel(slog.Level(12)))
}

func TestMultiHandler(t *testing.T) {
	var debug, warn bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))

	l := slog.New(h).With("groupId", "g1").WithGroup("quiz")
	l.Debug("answer recorded", "index", 2)
	l.Warn("save failed")

	assert.Contains(t, debug.String(), "answer recorded")
	assert.Contains(t, debug.String(), "quiz.index=2")
	assert.NotContains(t, warn.String(), "answer recorded")
	assert.Contains(t, warn.String(), "save failed")
	assert.Contains(t, warn.String(), "groupId=g1")
}

func TestMultiHandler_Disabled(t *testing.T) {
	h := NewMultiHandler(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
}
