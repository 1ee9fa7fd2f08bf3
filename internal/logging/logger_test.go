package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))

	logger = NewComponentLogger(logger, "batch")
	logger.Info("file completed",
		String(FieldFileID, "abc123"),
		Int("terminal", 3),
	)

	out := buf.String()
	if !strings.Contains(out, "[batch]") {
		t.Fatalf("component missing from output: %q", out)
	}
	if !strings.Contains(out, "file completed") {
		t.Fatalf("message missing from output: %q", out)
	}
	if !strings.Contains(out, "- file_id: abc123") {
		t.Fatalf("field missing from output: %q", out)
	}
}

func TestConsoleHandlerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))

	logger.WithGroup("relate").Info("pair scored", String("type", "informs"))
	if !strings.Contains(buf.String(), "- relate.type: informs") {
		t.Fatalf("grouped field not flattened: %q", buf.String())
	}
}

func TestConsoleHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestJSONHandlerFieldNames(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl))

	logger.Error("checkpoint write failed", Error(nil))

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v (%q)", err, buf.String())
	}
	if decoded["msg"] != "checkpoint write failed" {
		t.Fatalf("msg field = %v", decoded["msg"])
	}
	if decoded["level"] != "error" {
		t.Fatalf("level field = %v", decoded["level"])
	}
	if _, ok := decoded["ts"]; !ok {
		t.Fatal("ts field missing")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl))

	WarnWithContext(logger, "checkpoint degraded", "checkpoint_write_failed")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded[FieldEventType] != "checkpoint_write_failed" {
		t.Fatalf("event_type = %v", decoded[FieldEventType])
	}
	if decoded[FieldErrorHint] == "" {
		t.Fatal("error_hint missing")
	}
}
