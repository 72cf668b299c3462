package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger("debug")
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}

	logger = NewLogger("invalid")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", logger.GetLevel())
	}
}

func TestNewSessionLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "session.log")
	logger, closeLog, err := NewSessionLogger("info", path)
	if err != nil {
		t.Fatalf("NewSessionLogger error: %v", err)
	}
	logger.Info().Msg("session started")
	if err := closeLog(); err != nil {
		t.Fatalf("close log: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "session started") {
		t.Fatalf("expected log line in file, got %s", data)
	}
}

func TestNewSessionLoggerEmptyPath(t *testing.T) {
	logger, closeLog, err := NewSessionLogger("debug", "")
	if err != nil {
		t.Fatalf("NewSessionLogger error: %v", err)
	}
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}
	if err := closeLog(); err != nil {
		t.Fatalf("close func must be a no-op: %v", err)
	}
}
