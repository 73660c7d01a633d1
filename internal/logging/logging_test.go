package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/hpungsan/nosh/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, config.LogConfig{Level: "info", Format: "json"})).Info("hello", "user_id", "u1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("json output not decodable: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "hello" || rec["user_id"] != "u1" {
		t.Errorf("record = %v", rec)
	}

	buf.Reset()
	slog.New(NewHandler(&buf, config.LogConfig{Level: "warn", Format: "text"})).Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	logger := slog.New(h).With("component", "test")

	logger.Info("info line")
	logger.Error("error line")

	if !strings.Contains(a.String(), "info line") || !strings.Contains(a.String(), "error line") {
		t.Errorf("debug handler output = %q", a.String())
	}
	if strings.Contains(b.String(), "info line") || !strings.Contains(b.String(), "error line") {
		t.Errorf("error handler output = %q", b.String())
	}
	if !strings.Contains(b.String(), "component=test") {
		t.Errorf("attrs not propagated: %q", b.String())
	}
}

func TestSentryHandler_ReportsErrorsOnly(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn: "https://public@example.com/1",
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			events = append(events, event)
			mu.Unlock()
			return nil
		},
	})
	if err != nil {
		t.Fatalf("sentry.NewClient: %v", err)
	}
	hub := sentry.NewHub(client, sentry.NewScope())

	logger := slog.New(NewSentryHandler(hub)).With("request_id", "r1")
	logger.Info("not reported")
	logger.ErrorContext(context.Background(), "persist entries", "error", errors.New("disk full"), "user_id", "u1")

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("captured %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.User.ID != "u1" {
		t.Errorf("event user = %q, want u1", ev.User.ID)
	}
	if len(ev.Exception) == 0 || !strings.Contains(ev.Exception[len(ev.Exception)-1].Value, "disk full") {
		t.Errorf("exception = %+v, want the wrapped cause", ev.Exception)
	}
}

func TestSentryHandler_NoClientIsNoop(t *testing.T) {
	h := NewSentryHandler(sentry.NewHub(nil, sentry.NewScope()))
	if err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "x", 0)); err != nil {
		t.Errorf("Handle without client = %v, want nil", err)
	}
}

func TestInitSentry_EmptyDSN(t *testing.T) {
	flush, err := InitSentry("", "test")
	if err != nil {
		t.Fatalf("InitSentry(\"\") error = %v", err)
	}
	flush()
}
