// Package history implements the kernel's append-only airspace history
// log: a header block on open, then one Airspace State block and one
// Separation Analysis block per cycle, flushed after every write.
//
// Grounded on original_source/include/common/history_logger.h's
// HistoryLogger: writeHeader/writeStateEntry/reopenFile, translated
// from a buffered std::ofstream guarded by a std::mutex into an
// *os.File guarded by a sync.Mutex, flushed (via File.Sync) after each
// cycle instead of relying on a fixed-size internal buffer.
package history

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/curbz/atc-kernel/internal/atcerr"
	"github.com/curbz/atc-kernel/internal/geometry"
	"github.com/curbz/atc-kernel/internal/model"
)

// Logger appends Airspace State / Separation Analysis blocks to a
// history file, matching spec.md §6's append-only history log format.
type Logger struct {
	mu          sync.Mutex
	path        string
	file        *os.File
	operational bool
	intervalMS  int
	log         *logrus.Entry
}

// New opens path for appending and writes the header block. It returns
// atcerr.Fatal if the file cannot be opened at all, matching
// spec.md §7's taxonomy ("registry cannot be constructed -> aborts
// startup").
func New(path string, historyLoggingIntervalMS int, log *logrus.Entry) (*Logger, error) {
	l := &Logger{path: path, intervalMS: historyLoggingIntervalMS, log: log.WithField("component", "history")}
	if err := l.open(); err != nil {
		return nil, fmt.Errorf("opening history log %s: %w", path, atcerr.Fatal)
	}
	l.writeHeader()
	return l, nil
}

func (l *Logger) open() error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.operational = false
		return err
	}
	l.file = f
	l.operational = true
	return nil
}

func (l *Logger) writeHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.file, "=== ATC System History Log ===\nStarted: %s\nLogging interval: %dms\n\n",
		timestamp(), l.intervalMS)
	l.file.Sync()
}

// WriteCycle appends one Airspace State block and one Separation
// Analysis block for the given snapshot. A write failure is logged and
// triggers a reopen attempt on the next call, rather than propagating
// the error up through the caller's periodic task (spec.md §7:
// TransientIO "logged, retried on next cycle; for history specifically,
// triggers reopen attempt").
func (l *Logger) WriteCycle(states []model.State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.operational {
		if err := l.open(); err != nil {
			l.log.WithError(err).Warn("history log still unavailable, skipping cycle")
			return
		}
	}

	if err := l.writeAirspaceState(states); err != nil {
		l.log.WithError(err).Warn("history write failed, will attempt reopen next cycle")
		l.operational = false
		l.file.Close()
		return
	}
	if err := l.writeSeparationAnalysis(states); err != nil {
		l.log.WithError(err).Warn("history write failed, will attempt reopen next cycle")
		l.operational = false
		l.file.Close()
		return
	}

	if err := l.file.Sync(); err != nil {
		l.log.WithError(err).Warn("history flush failed, will attempt reopen next cycle")
		l.operational = false
		l.file.Close()
	}
}

func (l *Logger) writeAirspaceState(states []model.State) error {
	if _, err := fmt.Fprintf(l.file, "--- Airspace State ---\nTimestamp: %s\nAircraft count: %d\n", timestamp(), len(states)); err != nil {
		return err
	}
	for _, s := range states {
		speed := s.Velocity.Speed()
		heading := geometry.HeadingFromVelocity(s.Velocity.VX, s.Velocity.VY)
		_, err := fmt.Fprintf(l.file, "%s pos=(%.1f,%.1f,%.1f) speed=%.1f heading=%.1f status=%s time=%s\n",
			s.ID, s.Position.X, s.Position.Y, s.Position.Z, speed, heading, s.Status, s.UpdatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Logger) writeSeparationAnalysis(states []model.State) error {
	if _, err := fmt.Fprintf(l.file, "--- Separation Analysis ---\n"); err != nil {
		return err
	}
	for i := 0; i < len(states); i++ {
		for j := i + 1; j < len(states); j++ {
			h := geometry.HorizontalSeparation(states[i].Position.X, states[i].Position.Y, states[j].Position.X, states[j].Position.Y)
			v := geometry.VerticalSeparation(states[i].Position.Z, states[j].Position.Z)
			_, err := fmt.Fprintf(l.file, "%s-%s horizontal=%.1f vertical=%.1f\n", states[i].ID, states[j].ID, h, v)
			if err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(l.file, "\n")
	return err
}

// Operational reports whether the history file is currently writable.
func (l *Logger) Operational() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.operational
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func timestamp() string {
	return time.Now().Format(time.RFC3339Nano)
}
