package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/contrib/processors/minsev"
)

// restoreDefault puts back the default logger replaced by Instrument.
func restoreDefault(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestInstrumentText(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	shutdown, err := Instrument(context.Background(), slog.LevelInfo, "text", WithWriter(&buf))
	if err != nil {
		t.Fatalf("Instrument() error = %v", err)
	}
	defer shutdown(context.Background())

	slog.Debug("hidden")
	slog.Info("visible", "vin", "YV1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record logged at info level: %q", out)
	}
	if !strings.Contains(out, "msg=visible") || !strings.Contains(out, "vin=YV1") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestInstrumentJSON(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	shutdown, err := Instrument(context.Background(), slog.LevelDebug, "json", WithWriter(&buf))
	if err != nil {
		t.Fatalf("Instrument() error = %v", err)
	}
	defer shutdown(context.Background())

	slog.Debug("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "hello" || record["level"] != "DEBUG" {
		t.Errorf("record = %v", record)
	}
}

func TestInstrumentRejectsUnknownSettings(t *testing.T) {
	restoreDefault(t)

	if _, err := Instrument(context.Background(), slog.LevelInfo, "yaml"); err == nil {
		t.Error("unknown format accepted")
	}
	if _, err := Instrument(context.Background(), slog.LevelInfo, "text", WithExporter("zipkin")); err == nil {
		t.Error("unknown exporter accepted")
	}
}

func TestInstrumentStdoutExporter(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	shutdown, err := Instrument(context.Background(), slog.LevelInfo, "text", WithWriter(&buf), WithExporter(ExporterStdout))
	if err != nil {
		t.Fatalf("Instrument() error = %v", err)
	}

	slog.Info("exported")
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), "msg=exported") {
		t.Errorf("local output missing record: %q", buf.String())
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  minsev.Severity
	}{
		{slog.LevelDebug, minsev.SeverityDebug},
		{slog.LevelInfo, minsev.SeverityInfo},
		{slog.LevelWarn, minsev.SeverityWarn},
		{slog.LevelError, minsev.SeverityError},
		{slog.LevelError + 4, minsev.SeverityError},
	}
	for _, tt := range tests {
		if got := severity(tt.level); got != tt.want {
			t.Errorf("severity(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestFanout(t *testing.T) {
	var debug, warn bytes.Buffer
	logger := slog.New(fanout{
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}).With("component", "test").WithGroup("g")

	logger.Debug("low", "k", "v")
	logger.Warn("high")

	if !strings.Contains(debug.String(), "msg=low") || !strings.Contains(debug.String(), "msg=high") {
		t.Errorf("debug handler got %q", debug.String())
	}
	if strings.Contains(warn.String(), "msg=low") || !strings.Contains(warn.String(), "component=test") {
		t.Errorf("warn handler got %q", warn.String())
	}
	if !strings.Contains(debug.String(), "g.k=v") {
		t.Errorf("group not applied: %q", debug.String())
	}
}
