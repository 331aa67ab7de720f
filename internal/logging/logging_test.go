package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter_LevelFromEnv(t *testing.T) {
	cases := []struct {
		level     string
		wantDebug bool
	}{
		{"debug", true},
		{"info", false},
		{"warning", false},
		{"nonsense", false}, // unknown levels fall back to info
		{"", false},
	}
	for _, tc := range cases {
		t.Setenv("LOG_LEVEL", tc.level)
		t.Setenv("DEBUG", "")

		var buf bytes.Buffer
		log := newWithWriter(&buf)
		log.Debug("debug line")
		log.Info("info line")

		if got := strings.Contains(buf.String(), "debug line"); got != tc.wantDebug {
			t.Errorf("LOG_LEVEL=%q: debug emitted = %v, want %v", tc.level, got, tc.wantDebug)
		}
		if !strings.Contains(buf.String(), "info line") {
			t.Errorf("LOG_LEVEL=%q: info line missing", tc.level)
		}
	}
}

func TestNewWithWriter_DebugEnvOverridesLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DEBUG", "true")

	var buf bytes.Buffer
	newWithWriter(&buf).Debug("forced")

	if !strings.Contains(buf.String(), "forced") {
		t.Errorf("DEBUG=true must force debug level, got: %s", buf.String())
	}
}

func TestNewWithWriter_TextFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEBUG", "")

	var buf bytes.Buffer
	newWithWriter(&buf).Info("hello")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("LOG_FORMAT=text must not emit JSON: %s", out)
	}
	if !strings.Contains(out, "msg=hello") {
		t.Errorf("unexpected text output: %s", out)
	}
}

func TestNewNop_DiscardsEverything(t *testing.T) {
	t.Parallel()

	log := NewNop()
	if log == nil {
		t.Fatal("NewNop returned nil")
	}
	if log.Enabled(context.Background(), slog.LevelError) {
		t.Error("nop logger must not be enabled at any level")
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	log := NewNop()
	ctx := WithLogger(context.Background(), log)

	if got := FromContext(ctx); got != log {
		t.Error("FromContext must return the stored logger")
	}
	if got := FromContext(context.Background()); got == nil {
		t.Error("FromContext must fall back to a usable logger")
	}
}
