package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_JSONToStdout(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "info"}, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closer.Close()

	logger.Debug().Msg("hidden")
	logger.Info().Str("case_id", "c-1").Msg("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["message"] != "visible" || entry["case_id"] != "c-1" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNew_ConsoleIsNotJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Console: true}, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info().Msg("hello")
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Errorf("expected console output, got JSON %q", buf.String())
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected message in output, got %q", buf.String())
	}
}

func TestNew_TeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triage.log")
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "debug", Console: true, File: path, MaxSizeMB: 1}, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Warn().Str("patient_ref", "P-1").Msg("written twice")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatal("log file is empty")
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
		t.Fatalf("file line is not JSON: %v", err)
	}
	if entry["level"] != "warn" || entry["patient_ref"] != "P-1" {
		t.Errorf("unexpected file entry: %v", entry)
	}
	if !strings.Contains(buf.String(), "written twice") {
		t.Error("expected stdout copy")
	}
}
