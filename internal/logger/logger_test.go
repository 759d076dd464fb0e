package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestBuildFormatters(t *testing.T) {
	var buf bytes.Buffer
	log := build(&buf, "debug", "production")
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %s, want debug", log.GetLevel())
	}
	buf.Reset()
	log.WithField("run_id", "abc").Info("applied")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("production output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["run_id"] != "abc" || entry["msg"] != "applied" {
		t.Fatalf("unexpected entry %v", entry)
	}

	buf.Reset()
	text := build(&buf, "info", "development")
	buf.Reset()
	text.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("development output = %q", buf.String())
	}
}

func TestBuildInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := build(&buf, "loud", "development")
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %s, want info", log.GetLevel())
	}
	if !strings.Contains(buf.String(), "invalid log level") {
		t.Fatalf("expected a warning, got %q", buf.String())
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.log")
	log := New("info", "production", path)
	log.WithField("date", "2026-03-02").Info("day opened")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"date":"2026-03-02"`) {
		t.Fatalf("log file = %q", data)
	}
}
