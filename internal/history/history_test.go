package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/curbz/atc-kernel/internal/logging"
	"github.com/curbz/atc-kernel/internal/model"
)

func testLogEntry() *logrus.Entry {
	return logging.For(logging.New(false), "test")
}

func TestNewWritesHeaderBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.log")
	l, err := New(path, 30000, testLogEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read history file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "=== ATC System History Log ===") {
		t.Fatalf("expected header banner, got %q", content)
	}
	if !strings.Contains(content, "Logging interval: 30000ms") {
		t.Fatalf("expected logging interval line, got %q", content)
	}
}

func TestWriteCycleAppendsStateAndSeparationBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.log")
	l, err := New(path, 30000, testLogEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Close()

	states := []model.State{
		{ID: "AC100", Position: model.Position{X: 0, Y: 0, Z: 20000}, Velocity: model.Velocity{VX: 100, VY: 0}, Status: model.StatusCruising, UpdatedAt: time.Unix(0, 0)},
		{ID: "AC101", Position: model.Position{X: 1000, Y: 0, Z: 21000}, Velocity: model.Velocity{VX: -100, VY: 0}, Status: model.StatusCruising, UpdatedAt: time.Unix(0, 0)},
	}
	l.WriteCycle(states)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read history file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "--- Airspace State ---") {
		t.Fatalf("expected airspace state block, got %q", content)
	}
	if !strings.Contains(content, "AC100") || !strings.Contains(content, "AC101") {
		t.Fatalf("expected both aircraft ids in state block, got %q", content)
	}
	if !strings.Contains(content, "--- Separation Analysis ---") {
		t.Fatalf("expected separation analysis block, got %q", content)
	}
	if !strings.Contains(content, "AC100-AC101") {
		t.Fatalf("expected pairwise separation line, got %q", content)
	}
}

func TestWriteCycleWithNoAircraftStillWritesBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.log")
	l, err := New(path, 30000, testLogEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Close()

	l.WriteCycle(nil)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read history file: %v", err)
	}
	if !strings.Contains(string(data), "Aircraft count: 0") {
		t.Fatalf("expected zero aircraft count line, got %q", string(data))
	}
}

func TestOperationalReflectsReopenAttempt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.log")
	l, err := New(path, 30000, testLogEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Close()

	if !l.Operational() {
		t.Fatalf("expected logger to be operational after successful open")
	}

	l.file.Close()
	os.Remove(path)
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("failed to replace history file with a directory: %v", err)
	}
	l.operational = false

	l.WriteCycle(nil)
	if l.Operational() {
		t.Fatalf("expected logger to remain non-operational when reopen target is a directory")
	}
}

func TestNewFailsFatalWhenDirectoryNotWritable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "does", "not", "exist", "history.log")
	if _, err := New(path, 30000, testLogEntry()); err == nil {
		t.Fatalf("expected error opening history log under a nonexistent directory")
	}
}
