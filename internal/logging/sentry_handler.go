package logging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry configures the global Sentry client. An empty dsn disables
// reporting and returns a no-op flush.
func InitSentry(dsn, environment string) (flush func(), err error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// SentryHandler is an slog.Handler that reports ERROR+ records to Sentry.
type SentryHandler struct {
	hub   *sentry.Hub
	attrs []slog.Attr
	group string
}

// NewSentryHandler reports through hub, or the current hub when nil.
func NewSentryHandler(hub *sentry.Hub) *SentryHandler {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &SentryHandler{hub: hub}
}

// Enabled only handles ERROR and above.
func (h *SentryHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *SentryHandler) Handle(ctx context.Context, record slog.Record) error {
	hub := h.hub
	// Prefer the request-scoped hub installed by the HTTP middleware.
	if ctxHub := sentry.GetHubFromContext(ctx); ctxHub != nil {
		hub = ctxHub
	}
	if hub.Client() == nil {
		return nil
	}

	extra := make(map[string]any)
	var cause error
	add := func(a slog.Attr) {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		if err, ok := a.Value.Any().(error); ok && a.Key == "error" {
			cause = err
		}
		extra[key] = a.Value.String()
	}
	for _, a := range h.attrs {
		add(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		add(a)
		return true
	})

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetContext("log", extra)
		if uid, ok := extra["user_id"].(string); ok {
			scope.SetUser(sentry.User{ID: uid})
		}
		if cause != nil {
			scope.SetTag("message", record.Message)
			hub.CaptureException(fmt.Errorf("%s: %w", record.Message, cause))
			return
		}
		hub.CaptureMessage(record.Message)
	})
	return nil
}

func (h *SentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *SentryHandler) WithGroup(name string) slog.Handler {
	next := *h
	if next.group != "" {
		name = next.group + "." + name
	}
	next.group = name
	return &next
}
