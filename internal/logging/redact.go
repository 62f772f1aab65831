package logging

import (
	"context"
	"log/slog"
	"regexp"
	"slices"

	"github.com/m-mizutani/masq"
)

var bearerPattern = regexp.MustCompile(`(?i)^bearer\s+.+$`)

// NewReplaceAttr masks session secrets, passwords and API keys in log attributes.
func NewReplaceAttr(opts ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	all := []masq.Option{
		masq.WithFieldName("password"),
		masq.WithFieldName("Password"),
		masq.WithFieldName("secret"),
		masq.WithFieldName("Secret"),
		masq.WithFieldName("token"),
		masq.WithFieldName("apiKey"),
		masq.WithFieldName("APIKey"),
		masq.WithFieldName("authorization"),
		masq.WithFieldName("cookie"),
		masq.WithFieldPrefix("secret"),
		masq.WithRegex(bearerPattern),
	}
	return masq.New(append(all, opts...)...)
}

// redactHandler applies replace to every attribute before next sees it.
// It serves handlers that take no slog.HandlerOptions, like charmbracelet/log.
type redactHandler struct {
	next    slog.Handler
	replace func(groups []string, a slog.Attr) slog.Attr
	groups  []string
}

func newRedactHandler(next slog.Handler) slog.Handler {
	return &redactHandler{next: next, replace: NewReplaceAttr()}
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.replace(h.groups, a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.replace(h.groups, a)
	}
	return &redactHandler{next: h.next.WithAttrs(redacted), replace: h.replace, groups: h.groups}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{
		next:    h.next.WithGroup(name),
		replace: h.replace,
		groups:  append(slices.Clip(h.groups), name),
	}
}
