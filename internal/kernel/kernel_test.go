package kernel

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/curbz/atc-kernel/internal/atcerr"
	"github.com/curbz/atc-kernel/internal/bus"
	"github.com/curbz/atc-kernel/internal/config"
	"github.com/curbz/atc-kernel/internal/logging"
)

func writeTestCSV(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "aircraft.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test CSV: %v", err)
	}
	return path
}

func testKernel(t *testing.T, csv string) (*Kernel, *config.Config) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Intervals.PositionUpdateMS = 20
	cfg.Intervals.PSRScanMS = 40
	cfg.Intervals.SSRInterrogationMS = 20
	cfg.Intervals.ViolationCheckMS = 20
	cfg.Intervals.ViolationCheckFastMS = 10
	cfg.Intervals.HistoryLoggingMS = 50

	origWD, _ := os.Getwd()
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir into temp dir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(origWD) })

	path := writeTestCSV(t, csv)
	k, err := New(&cfg, path, bus.NewInMemory(), logging.New(false))
	if err != nil {
		t.Fatalf("unexpected error constructing kernel: %v", err)
	}
	return k, &cfg
}

func TestNewRejectsEmptyAircraftFile(t *testing.T) {
	cfg := config.Defaults()
	path := writeTestCSV(t, "Time,ID,X,Y,Z,SpeedX,SpeedY,SpeedZ\n")
	_, err := New(&cfg, path, bus.NewInMemory(), logging.New(false))
	if err == nil {
		t.Fatalf("expected error constructing kernel from an empty aircraft file")
	}
}

func TestStartStopRunsCyclesAndShutsDownCleanly(t *testing.T) {
	k, _ := testKernel(t, "Time,ID,X,Y,Z,SpeedX,SpeedY,SpeedZ\n0,AC100,50000,50000,20000,200,0,0\n")
	k.Start()
	time.Sleep(80 * time.Millisecond)
	k.Stop()

	m := k.Metrics()
	if m.ActiveAircraft != 1 {
		t.Fatalf("expected 1 active aircraft, got %d", m.ActiveAircraft)
	}
	if m.ViolationChecks == 0 {
		t.Fatalf("expected at least one separation cycle to have run")
	}
}

func TestPublishesPositionUpdatesOverTransport(t *testing.T) {
	cfg := config.Defaults()
	cfg.Intervals.SSRInterrogationMS = 10
	cfg.Intervals.PSRScanMS = 10

	origWD, _ := os.Getwd()
	dir := t.TempDir()
	os.Chdir(dir)
	t.Cleanup(func() { os.Chdir(origWD) })

	path := writeTestCSV(t, "Time,ID,X,Y,Z,SpeedX,SpeedY,SpeedZ\n0,AC100,50000,50000,20000,200,0,0\n")
	transport := bus.NewInMemory()

	var mu sync.Mutex
	var gotPositionUpdate bool
	transport.OnMessage(func(msg bus.Message) {
		mu.Lock()
		defer mu.Unlock()
		if msg.Type == bus.TypePositionUpdate {
			gotPositionUpdate = true
		}
	})

	k, err := New(&cfg, path, transport, logging.New(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	k.Start()
	time.Sleep(60 * time.Millisecond)
	k.Stop()

	mu.Lock()
	defer mu.Unlock()
	if !gotPositionUpdate {
		t.Fatalf("expected at least one POSITION_UPDATE message to be published")
	}
}

func TestExecuteCommandAltitudeChange(t *testing.T) {
	k, _ := testKernel(t, "Time,ID,X,Y,Z,SpeedX,SpeedY,SpeedZ\n0,AC100,50000,50000,20000,200,0,0\n")

	_, err := k.ExecuteCommand([]string{"ALT", "AC100", "21000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ac := k.aircraftByID["AC100"]
	if ac.State().Position.Z != 21000 {
		t.Fatalf("expected altitude 21000, got %v", ac.State().Position.Z)
	}
}

func TestExecuteCommandUnknownAircraft(t *testing.T) {
	k, _ := testKernel(t, "Time,ID,X,Y,Z,SpeedX,SpeedY,SpeedZ\n0,AC100,50000,50000,20000,200,0,0\n")

	_, err := k.ExecuteCommand([]string{"ALT", "AC999", "21000"})
	if err == nil {
		t.Fatalf("expected error for unknown aircraft")
	}
}

func TestExecuteCommandHelpAndStatus(t *testing.T) {
	k, _ := testKernel(t, "Time,ID,X,Y,Z,SpeedX,SpeedY,SpeedZ\n0,AC100,50000,50000,20000,200,0,0\n")

	text, err := k.ExecuteCommand([]string{"HELP"})
	if err != nil || text == "" {
		t.Fatalf("expected non-empty help text, got %q err=%v", text, err)
	}

	status, err := k.ExecuteCommand([]string{"STATUS", "AC100"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status == "" {
		t.Fatalf("expected non-empty status text")
	}
}

func TestExecuteCommandEmergencyDeclareAndCancel(t *testing.T) {
	k, _ := testKernel(t, "Time,ID,X,Y,Z,SpeedX,SpeedY,SpeedZ\n0,AC100,50000,50000,20000,200,0,0\n")

	if _, err := k.ExecuteCommand([]string{"EMERG", "AC100", "ON"}); err != nil {
		t.Fatalf("unexpected error declaring emergency: %v", err)
	}
	ac := k.aircraftByID["AC100"]
	if ac.State().Status.String() != "EMERGENCY" {
		t.Fatalf("expected EMERGENCY status, got %v", ac.State().Status)
	}

	if _, err := k.ExecuteCommand([]string{"EMERG", "AC100", "OFF"}); err != nil {
		t.Fatalf("unexpected error cancelling emergency: %v", err)
	}
	if ac.State().Status.String() == "EMERGENCY" {
		t.Fatalf("expected emergency to be cancelled")
	}
}

func TestSubmitCommandReturnsResourceExhaustionWhenQueueFull(t *testing.T) {
	cfg := config.Defaults()
	cfg.CommandQueueSize = 2

	origWD, _ := os.Getwd()
	dir := t.TempDir()
	os.Chdir(dir)
	t.Cleanup(func() { os.Chdir(origWD) })

	path := writeTestCSV(t, "Time,ID,X,Y,Z,SpeedX,SpeedY,SpeedZ\n0,AC100,50000,50000,20000,200,0,0\n")
	k, err := New(&cfg, path, bus.NewInMemory(), logging.New(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Do not Start the kernel: with no runCommandQueue goroutine draining
	// it, the buffered channel fills deterministically.

	for i := 0; i < cfg.CommandQueueSize; i++ {
		if err := k.SubmitCommand("STATUS"); err != nil {
			t.Fatalf("unexpected error filling the queue (entry %d): %v", i, err)
		}
	}

	if err := k.SubmitCommand("STATUS"); err == nil {
		t.Fatalf("expected an error once the command queue is full")
	} else if !errors.Is(err, atcerr.ResourceExhaustion) {
		t.Fatalf("expected atcerr.ResourceExhaustion, got %v", err)
	}
}

func TestAircraftExitingAirspacePurgesRegistryAndDependentState(t *testing.T) {
	cfg := config.Defaults()
	cfg.Intervals.PositionUpdateMS = 10
	cfg.Intervals.SSRInterrogationMS = 10
	cfg.Intervals.PSRScanMS = 10
	cfg.Intervals.ViolationCheckMS = 10
	cfg.Intervals.ViolationCheckFastMS = 5
	cfg.Intervals.HistoryLoggingMS = 100

	origWD, _ := os.Getwd()
	dir := t.TempDir()
	os.Chdir(dir)
	t.Cleanup(func() { os.Chdir(origWD) })

	// Placed one cycle's worth of travel from the XMax boundary, heading
	// straight out, so the very first cycle transitions it to EXITING.
	csv := "Time,ID,X,Y,Z,SpeedX,SpeedY,SpeedZ\n0,AC100,99996,50000,20000,500,0,0\n"
	path := writeTestCSV(t, csv)

	k, err := New(&cfg, path, bus.NewInMemory(), logging.New(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	k.Start()
	time.Sleep(80 * time.Millisecond)
	k.Stop()

	if _, ok := k.registry.Get("AC100"); ok {
		t.Fatalf("expected AC100 to be purged from the registry after exiting the airspace")
	}
	if k.tracker.TrackCount() != 0 {
		t.Fatalf("expected the radar tracker to forget AC100's track, still have %d", k.tracker.TrackCount())
	}
}

func TestDetectsCurrentViolationAndEmitsEmergencyAlert(t *testing.T) {
	cfg := config.Defaults()
	cfg.Intervals.PositionUpdateMS = 20
	cfg.Intervals.ViolationCheckMS = 10
	cfg.Intervals.ViolationCheckFastMS = 5
	cfg.Intervals.SSRInterrogationMS = 20
	cfg.Intervals.PSRScanMS = 40
	cfg.Intervals.HistoryLoggingMS = 100

	origWD, _ := os.Getwd()
	dir := t.TempDir()
	os.Chdir(dir)
	t.Cleanup(func() { os.Chdir(origWD) })

	// Two aircraft already inside both the horizontal and vertical minimums.
	csv := "Time,ID,X,Y,Z,SpeedX,SpeedY,SpeedZ\n" +
		"0,AC100,50000,50000,20000,200,0,0\n" +
		"0,AC101,50500,50000,20500,-200,0,0\n"
	path := writeTestCSV(t, csv)

	transport := bus.NewInMemory()
	var mu sync.Mutex
	var gotEmergency bool
	transport.OnMessage(func(msg bus.Message) {
		mu.Lock()
		defer mu.Unlock()
		if msg.Type == bus.TypeAlert && msg.Alert.Level == bus.AlertLevelEmergency {
			gotEmergency = true
		}
	})

	k, err := New(&cfg, path, transport, logging.New(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	k.Start()
	time.Sleep(60 * time.Millisecond)
	k.Stop()

	mu.Lock()
	defer mu.Unlock()
	if !gotEmergency {
		t.Fatalf("expected an EMERGENCY-level alert for the current violation")
	}
}
