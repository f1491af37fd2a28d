package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func newJSONLogger(t *testing.T, level string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := &Config{Level: level, Format: "json", Output: "stdout"}
	return NewWithWriter(cfg, "capdir", &buf), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("failed to decode log line %q: %v", line, err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewWithWriter_JSONFields(t *testing.T) {
	l, buf := newJSONLogger(t, "info")
	l.WithComponent("sequencer").Info("task finished", Fields(FieldParticipantID, "p1", FieldGbid, "g1"))

	m := decodeLine(t, buf)
	if m["message"] != "task finished" {
		t.Errorf("expected message 'task finished', got %v", m["message"])
	}
	if m[FieldComponent] != "sequencer" {
		t.Errorf("expected component=sequencer, got %v", m[FieldComponent])
	}
	if m[FieldParticipantID] != "p1" || m[FieldGbid] != "g1" {
		t.Errorf("expected domain fields, got %v", m)
	}
	if m["service"] != "capdir" {
		t.Errorf("expected service=capdir, got %v", m["service"])
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	l, buf := newJSONLogger(t, "warn")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered at warn level, got %q", buf.String())
	}
	l.Warn("shown")
	if buf.Len() == 0 {
		t.Error("expected warn to be written")
	}
}

func TestNewInvalidLevel(t *testing.T) {
	l, buf := newJSONLogger(t, "invalid-level")
	l.Info("still logs")
	if buf.Len() == 0 {
		t.Error("expected invalid level to fall back to info")
	}
}

func TestWithParticipant(t *testing.T) {
	l, buf := newJSONLogger(t, "debug")
	l.WithParticipant("p42").Debug("added")
	m := decodeLine(t, buf)
	if m[FieldParticipantID] != "p42" {
		t.Errorf("expected participant_id=p42, got %v", m[FieldParticipantID])
	}
}

func TestWithError(t *testing.T) {
	l, buf := newJSONLogger(t, "info")
	l.WithError(fmt.Errorf("boom")).Error("failed")
	m := decodeLine(t, buf)
	if m["error"] != "boom" {
		t.Errorf("expected error=boom, got %v", m["error"])
	}
}

func TestWithContext_SpanIDs(t *testing.T) {
	l, buf := newJSONLogger(t, "info")
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	l.WithContext(ctx).Info("lookup")
	m := decodeLine(t, buf)
	if m[FieldTraceID] != traceID.String() {
		t.Errorf("expected trace_id %s, got %v", traceID, m[FieldTraceID])
	}
	if m[FieldSpanID] != spanID.String() {
		t.Errorf("expected span_id %s, got %v", spanID, m[FieldSpanID])
	}
}

func TestWithContext_NoSpan(t *testing.T) {
	l := NewNop()
	if l.WithContext(context.Background()) != l {
		t.Error("expected the same logger when ctx carries no span")
	}
}

func TestInit(t *testing.T) {
	Init(Config{ServiceName: "capdir", Format: "json"})
	gl := GetGlobalLogger()
	if gl == nil {
		t.Fatal("expected global logger to be set after Init")
	}
	if gl.service != "capdir" {
		t.Errorf("expected service capdir, got %q", gl.service)
	}
}

func TestGetGlobalLoggerDefault(t *testing.T) {
	globalLogger = nil
	if GetGlobalLogger() == nil {
		t.Fatal("expected default global logger")
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" {
		t.Errorf("expected level info, got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected format console, got %q", cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("expected output stdout, got %q", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamp enabled")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json", Output: "stdout"}, false},
		{"bad level", Config{Level: "loud", Format: "json", Output: "stdout"}, true},
		{"bad format", Config{Level: "info", Format: "xml", Output: "stdout"}, true},
		{"bad output", Config{Level: "info", Format: "json", Output: "file"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("expected error=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFields(t *testing.T) {
	m := Fields("a", 1, "b", "two", 3, "ignored", "dangling")
	if len(m) != 2 {
		t.Errorf("expected 2 fields, got %d: %v", len(m), m)
	}
	if m["a"] != 1 || m["b"] != "two" {
		t.Errorf("unexpected fields: %v", m)
	}
}

func TestDurationFields(t *testing.T) {
	m := DurationFields("lookup", 1500*time.Millisecond)
	if m[FieldDuration] != int64(1500) {
		t.Errorf("expected 1500ms, got %v", m[FieldDuration])
	}
}

func TestErrorFields(t *testing.T) {
	m := ErrorFields("touch", fmt.Errorf("unreachable"))
	if m[FieldOperation] != "touch" || m[FieldError] != "unreachable" {
		t.Errorf("unexpected fields: %v", m)
	}
}
