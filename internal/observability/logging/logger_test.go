package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSONLoggerTaggedWithService(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLoggerTo(&buf, "einvoiced", "info")
	log.Info("pipeline.start", "bytes", 42)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if line["service"] != "einvoiced" {
		t.Errorf("service = %v", line["service"])
	}
	if line["msg"] != "pipeline.start" {
		t.Errorf("msg = %v", line["msg"])
	}
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	NewJSONLoggerTo(&buf, "einvoiced", "info").Debug("noise")
	if buf.Len() != 0 {
		t.Errorf("debug line emitted: %s", buf.String())
	}
}
