package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/dgnsrekt/pucks-replay/internal/config"
)

func TestNewLogger_FileOutput(t *testing.T) {
	dir := t.TempDir()
	logCfg := config.LoggingConfig{Enabled: true, Directory: dir, Level: "warn"}

	logger, err := newLogger(false, logCfg, true)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if logger.Core().Enabled(zap.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	logger.Warn("queue drained")
	_ = logger.Sync()

	files, err := filepath.Glob(filepath.Join(dir, "recorder_*.log"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one log file, got %v (%v)", files, err)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "queue drained") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestNewLogger_NoFileForShortCommands(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logCfg := config.LoggingConfig{Enabled: true, Directory: dir, Level: "info"}

	if _, err := newLogger(false, logCfg, false); err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected no log directory, stat returned %v", err)
	}
}

func TestNewLogger_VerboseEnablesDebug(t *testing.T) {
	logger, err := newLogger(true, config.LoggingConfig{Level: "error"}, false)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if !logger.Core().Enabled(zap.DebugLevel) {
		t.Error("verbose should enable debug regardless of the configured level")
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	if _, err := newLogger(false, config.LoggingConfig{Level: "loud"}, false); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestRootCmd_RunKeepsLogFile(t *testing.T) {
	root := newRootCmd()
	for _, sub := range root.Commands() {
		_, keep := sub.Annotations[keepLogFile]
		if want := sub.Name() == "run"; keep != want {
			t.Errorf("%s: keepLogFile=%v, want %v", sub.Name(), keep, want)
		}
	}
}
