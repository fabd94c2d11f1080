// Package aircraft implements a single tracked aircraft's periodic
// position-update task and its command surface (speed, heading,
// altitude, emergency declare/cancel).
//
// Grounded on original_source/src/core/aircraft.cpp's Aircraft class: a
// PeriodicTask subclass that dead-reckons its own position once per
// cycle, self-transitions ENTERING->CRUISING on its first valid update
// and CRUISING->EXITING (stopping itself) the first time dead reckoning
// would carry it outside the airspace volume. Here the PeriodicTask base
// class becomes a held internal/clock.Task. clock.Task.Stop waits for
// the task's goroutine to exit, so calling it synchronously from inside
// the cycle would deadlock; on EXITING the cycle instead requests the
// stop from a separate goroutine (see cycle).
package aircraft

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/curbz/atc-kernel/internal/atcerr"
	"github.com/curbz/atc-kernel/internal/clock"
	"github.com/curbz/atc-kernel/internal/config"
	"github.com/curbz/atc-kernel/internal/geometry"
	"github.com/curbz/atc-kernel/internal/model"
)

// Publisher receives a state update each time an Aircraft's position
// changes. The kernel wires this to a method that both updates the
// registry and, once an aircraft reaches StatusExiting, retires it from
// the registry (spec.md §4.6).
type Publisher func(model.State)

// Aircraft owns one tracked aircraft's mutable state and its periodic
// position-update task. All exported command methods acquire mu, so
// commands against the same Aircraft are serialized in call order; there
// is no ordering guarantee between commands against different Aircraft
// values (spec.md §4.2).
type Aircraft struct {
	mu    sync.Mutex
	state model.State

	airspace geometry.Box
	minSpeed float64
	maxSpeed float64

	publish Publisher
	log     *logrus.Entry
	task    *clock.Task
}

// New constructs an Aircraft at the given initial position and velocity.
// It returns atcerr.InvalidInput if the initial position lies outside
// the configured airspace volume, matching original_source's
// Aircraft constructor throwing std::invalid_argument.
func New(id string, pos model.Position, vel model.Velocity, cfg *config.Config, publish Publisher, log *logrus.Entry) (*Aircraft, error) {
	box := geometry.Box{
		XMin: cfg.Airspace.XMin, XMax: cfg.Airspace.XMax,
		YMin: cfg.Airspace.YMin, YMax: cfg.Airspace.YMax,
		ZMin: cfg.Airspace.ZMin, ZMax: cfg.Airspace.ZMax,
	}
	if !box.Contains(pos.X, pos.Y, pos.Z) {
		return nil, fmt.Errorf("aircraft %s initial position outside airspace: %w", id, atcerr.InvalidInput)
	}

	a := &Aircraft{
		state: model.State{
			ID:        id,
			Position:  pos,
			Velocity:  vel,
			Status:    model.StatusEntering,
			UpdatedAt: time.Now(),
		},
		airspace: box,
		minSpeed: cfg.Performance.MinSpeed,
		maxSpeed: cfg.Performance.MaxSpeed,
		publish:  publish,
		log:      log.WithField("aircraft", id),
	}

	period := time.Duration(cfg.Intervals.PositionUpdateMS) * time.Millisecond
	a.task = clock.New(id, period, cfg.Priorities.Aircraft, a.cycle, func(err error) {
		a.log.WithError(err).Warn("aircraft cycle error")
	})

	a.log.WithFields(logrus.Fields{
		"position": pos,
		"speed":    vel.Speed(),
	}).Info("aircraft initialized")
	if a.publish != nil {
		a.publish(a.snapshotLocked())
	}
	return a, nil
}

// Start begins the aircraft's periodic position-update task.
func (a *Aircraft) Start() { a.task.Start() }

// Stop halts the aircraft's periodic position-update task and waits for
// the in-flight cycle, if any, to finish.
func (a *Aircraft) Stop() { a.task.Stop() }

// State returns a copy of the aircraft's current state.
func (a *Aircraft) State() model.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aircraft) snapshotLocked() model.State {
	return a.state
}

// cycle is the Aircraft's periodic task body: advance position by one
// interval of dead reckoning, transition ENTERING->CRUISING on first
// success, or CRUISING->EXITING (and request the task stop) the moment
// the advance would leave the airspace volume.
func (a *Aircraft) cycle() error {
	a.mu.Lock()

	dt := a.task.Period().Seconds()
	nx, ny, nz := geometry.DeadReckon(a.state.Position.X, a.state.Position.Y, a.state.Position.Z,
		a.state.Velocity.VX, a.state.Velocity.VY, a.state.Velocity.VZ, dt)

	if a.airspace.Contains(nx, ny, nz) {
		a.state.Position = model.Position{X: nx, Y: ny, Z: nz}
		a.state.UpdatedAt = time.Now()
		if a.state.Status == model.StatusEntering {
			a.state.Status = model.StatusCruising
			a.log.Info("status change: ENTERING -> CRUISING")
		}
		snap := a.snapshotLocked()
		a.mu.Unlock()
		if a.publish != nil {
			a.publish(snap)
		}
		return nil
	}

	a.state.Status = model.StatusExiting
	a.state.UpdatedAt = time.Now()
	a.log.Info("aircraft exiting airspace")
	snap := a.snapshotLocked()
	a.mu.Unlock()
	if a.publish != nil {
		a.publish(snap)
	}
	// Request the task stop from within its own cycle. clock.Task.Stop
	// would deadlock if called synchronously here (it waits on the
	// goroutine currently running this very call), so the request is
	// deferred to its own goroutine.
	go a.task.Stop()
	return nil
}

// DeclareEmergency transitions the aircraft to StatusEmergency from any
// non-terminal state, recording the prior state so CancelEmergency can
// restore it.
func (a *Aircraft) DeclareEmergency() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Status == model.StatusExiting {
		return
	}
	if a.state.Status != model.StatusEmergency {
		a.state.PreEmergencyState = a.state.Status
	}
	a.state.Status = model.StatusEmergency
	a.state.UpdatedAt = time.Now()
	a.log.Warn("emergency declared")
}

// CancelEmergency restores the aircraft to the state it held before the
// emergency was declared, defaulting to StatusCruising. It is a no-op if
// the aircraft is not currently in StatusEmergency.
func (a *Aircraft) CancelEmergency() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Status != model.StatusEmergency {
		return
	}
	prev := a.state.PreEmergencyState
	if prev == model.StatusEntering || prev == model.StatusExiting {
		prev = model.StatusCruising
	}
	a.state.Status = prev
	a.state.UpdatedAt = time.Now()
	a.log.Info("emergency cancelled")
}

// UpdateSpeed changes the aircraft's speed while preserving its current
// heading. It returns atcerr.OutOfRange if new_speed falls outside the
// configured performance envelope.
func (a *Aircraft) UpdateSpeed(newSpeed float64) error {
	if newSpeed < a.minSpeed || newSpeed > a.maxSpeed {
		return fmt.Errorf("speed %.2f outside [%.2f, %.2f]: %w", newSpeed, a.minSpeed, a.maxSpeed, atcerr.OutOfRange)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	heading := geometry.HeadingFromVelocity(a.state.Velocity.VX, a.state.Velocity.VY)
	vx, vy := geometry.VelocityFromSpeedHeading(newSpeed, heading)
	a.state.Velocity.VX = vx
	a.state.Velocity.VY = vy
	a.state.UpdatedAt = time.Now()
	a.log.WithField("speed", newSpeed).Info("speed updated")
	return nil
}

// UpdateHeading changes the aircraft's heading while preserving its
// current speed. It returns atcerr.OutOfRange if new_heading is outside
// [0, 360).
func (a *Aircraft) UpdateHeading(newHeading float64) error {
	if newHeading < 0 || newHeading >= 360 {
		return fmt.Errorf("heading %.2f outside [0, 360): %w", newHeading, atcerr.OutOfRange)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	speed := a.state.Velocity.Speed()
	vx, vy := geometry.VelocityFromSpeedHeading(speed, newHeading)
	a.state.Velocity.VX = vx
	a.state.Velocity.VY = vy
	a.state.UpdatedAt = time.Now()
	a.log.WithField("heading", newHeading).Info("heading updated")
	return nil
}

// UpdateAltitude changes the aircraft's altitude directly. It returns
// atcerr.OutOfRange if new_altitude is outside the configured airspace
// z-bounds.
func (a *Aircraft) UpdateAltitude(newAltitude float64) error {
	if newAltitude < a.airspace.ZMin || newAltitude > a.airspace.ZMax {
		return fmt.Errorf("altitude %.2f outside [%.2f, %.2f]: %w", newAltitude, a.airspace.ZMin, a.airspace.ZMax, atcerr.OutOfRange)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Position.Z = newAltitude
	a.state.UpdatedAt = time.Now()
	a.log.WithField("altitude", newAltitude).Info("altitude updated")
	return nil
}

// Stats returns the best and worst recorded per-cycle execution times
// for the aircraft's periodic task.
func (a *Aircraft) Stats() (best, worst time.Duration) {
	return a.task.Stats()
}
