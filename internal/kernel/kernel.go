// Package kernel is the composition root: it constructs the registry,
// the per-aircraft tasks, the radar tracker, the separation engine, the
// message bus, and the history logger, wires them together, and starts
// and stops them in the dependency order spec.md §5 specifies.
//
// Grounded on original_source/include/core/main_system.h's MainSystem
// (initializeComponents/validateComponents/run/shutdown,
// SystemMetrics) and the teacher's internal/atc/atc.go Service/New
// shape: a constructor that loads configuration and data, wires
// dependent components, and returns a struct whose Start launches
// background goroutines rather than blocking the constructor itself.
package kernel

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/curbz/atc-kernel/internal/aircraft"
	"github.com/curbz/atc-kernel/internal/atcerr"
	"github.com/curbz/atc-kernel/internal/bus"
	"github.com/curbz/atc-kernel/internal/clock"
	"github.com/curbz/atc-kernel/internal/command"
	"github.com/curbz/atc-kernel/internal/config"
	"github.com/curbz/atc-kernel/internal/geometry"
	"github.com/curbz/atc-kernel/internal/history"
	"github.com/curbz/atc-kernel/internal/ingest"
	"github.com/curbz/atc-kernel/internal/model"
	"github.com/curbz/atc-kernel/internal/radar"
	"github.com/curbz/atc-kernel/internal/registry"
	"github.com/curbz/atc-kernel/internal/separation"
)

// defaultHistoryFile matches original_source/include/common/history_logger.h's
// HistoryLogger default constructor argument.
const defaultHistoryFile = "airspace_history.log"

// Metrics mirrors original_source's SystemMetrics: uptime and the
// separation engine's running counters, refreshed from the engine's own
// cycle rather than a separate periodic task (SPEC_FULL.md §C.2).
type Metrics struct {
	UptimeSeconds      int64
	ActiveAircraft     int
	ViolationChecks    int
	ViolationsDetected int
}

// Kernel owns every wired component and their lifecycle.
type Kernel struct {
	cfg *config.Config
	log *logrus.Entry

	registry  *registry.Registry
	tracker   *radar.Tracker
	engine    *separation.Engine
	transport bus.Transport
	history   *history.Logger

	aircraftMu sync.RWMutex
	aircraftByID map[string]*aircraft.Aircraft

	radarTask      *clock.Task
	separationTask *clock.Task
	historyTask    *clock.Task

	commandQueue chan string
	commandDone  chan struct{}

	startedAt time.Time
}

// New loads the aircraft population from dataFile, constructs every
// component, and wires them. It does not start any background task;
// call Start for that. transport may be nil, in which case an
// InMemory bus is used.
func New(cfg *config.Config, dataFile string, transport bus.Transport, logRoot *logrus.Logger) (*Kernel, error) {
	log := logRoot.WithField("component", "kernel")

	rows, err := ingest.Load(dataFile, cfg, log)
	if err != nil {
		return nil, err
	}

	if transport == nil {
		transport = bus.NewInMemory()
	}

	hist, err := history.New(defaultHistoryFile, cfg.Intervals.HistoryLoggingMS, log)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		cfg:          cfg,
		log:          log,
		registry:     registry.New(),
		transport:    transport,
		history:      hist,
		aircraftByID: make(map[string]*aircraft.Aircraft),
		commandQueue: make(chan string, cfg.CommandQueueSize),
		commandDone:  make(chan struct{}),
	}

	for _, row := range rows {
		id := row.ID
		ac, err := aircraft.New(id,
			model.Position{X: row.X, Y: row.Y, Z: row.Z},
			model.Velocity{VX: row.VX, VY: row.VY, VZ: row.VZ},
			cfg, k.publishAircraftState, log)
		if err != nil {
			log.WithError(err).WithField("aircraft", id).Warn("rejecting aircraft from initial population")
			continue
		}
		k.aircraftByID[id] = ac
	}

	if len(k.aircraftByID) == 0 {
		return nil, fmt.Errorf("no aircraft could be constructed from %s: %w", dataFile, atcerr.InvalidInput)
	}

	k.tracker = radar.New(cfg, k.registry.Snapshot, k.publishPositionUpdate, log)

	k.engine = separation.New(separation.ParamsFromConfig(cfg), log,
		k.onViolation, k.onPrediction, k.onResolution, k.onCadence)

	k.registry.OnRemove(func(id string) {
		k.tracker.Forget(id)
		k.engine.Forget(id)
	})

	k.radarTask = clock.New("radar", time.Duration(cfg.Intervals.SSRInterrogationMS)*time.Millisecond,
		cfg.Priorities.Radar, k.tracker.Cycle, k.logTaskError("radar"))

	k.separationTask = clock.New("separation", time.Duration(cfg.Intervals.ViolationCheckMS)*time.Millisecond,
		cfg.Priorities.Separation, k.runSeparationCycle, k.logTaskError("separation"))

	k.historyTask = clock.New("history", time.Duration(cfg.Intervals.HistoryLoggingMS)*time.Millisecond,
		cfg.Priorities.Logging, k.runHistoryCycle, k.logTaskError("history"))

	return k, nil
}

func (k *Kernel) logTaskError(name string) func(error) {
	return func(err error) {
		k.log.WithError(err).WithField("task", name).Warn("periodic task cycle failed")
	}
}

// Start begins every background task, in dependency order (spec.md §5's
// start order is the reverse of its shutdown order: Aircraft tasks ->
// Radar -> Separation -> Operator command queue -> History; the
// Channel/transport and Display layers are out of scope per spec.md §1).
func (k *Kernel) Start() {
	k.startedAt = time.Now()

	k.aircraftMu.RLock()
	for _, ac := range k.aircraftByID {
		ac.Start()
	}
	k.aircraftMu.RUnlock()

	k.radarTask.Start()
	k.separationTask.Start()
	go k.runCommandQueue()
	k.historyTask.Start()

	k.log.WithField("aircraft_count", len(k.aircraftByID)).Info("kernel started")
}

// Stop halts every background task in the reverse of Start's order:
// History -> Operator command queue -> Separation -> Radar -> Aircraft
// tasks, then closes the transport and history log.
func (k *Kernel) Stop() {
	k.historyTask.Stop()
	close(k.commandDone)
	k.separationTask.Stop()
	k.radarTask.Stop()

	k.aircraftMu.RLock()
	for _, ac := range k.aircraftByID {
		ac.Stop()
	}
	k.aircraftMu.RUnlock()

	if err := k.transport.Close(); err != nil {
		k.log.WithError(err).Warn("error closing transport")
	}
	if err := k.history.Close(); err != nil {
		k.log.WithError(err).Warn("error closing history log")
	}

	k.log.Info("kernel stopped")
}

func (k *Kernel) runSeparationCycle() error {
	return k.engine.Cycle(k.registry.Snapshot())
}

func (k *Kernel) runHistoryCycle() error {
	k.history.WriteCycle(k.registry.Snapshot())
	return nil
}

// publishAircraftState is the Publisher an aircraft.Aircraft calls on
// every state change. It keeps the registry current and, once an
// aircraft reaches StatusExiting, also retires it from the registry so
// Remove's dependent-state purge (spec.md §4.6) fires the moment the
// aircraft leaves the airspace rather than lingering forever.
func (k *Kernel) publishAircraftState(s model.State) {
	k.registry.Put(s)
	if s.Status == model.StatusExiting {
		k.registry.Remove(s.ID)
	}
}

func (k *Kernel) publishPositionUpdate(s model.State) {
	heading := geometry.HeadingFromVelocity(s.Velocity.VX, s.Velocity.VY)
	msg := bus.NewPositionUpdate("radar", nowMS(), bus.Position{
		Callsign: s.ID,
		X:        s.Position.X, Y: s.Position.Y, Z: s.Position.Z,
		VX: s.Velocity.VX, VY: s.Velocity.VY, VZ: s.Velocity.VZ,
		Heading:     heading,
		Status:      uint8(s.Status),
		TimestampMS: nowMS(),
	})
	if err := k.transport.Send(msg); err != nil {
		k.log.WithError(err).Debug("failed to publish position update")
	}
}

// onViolation publishes an ALERT for a current (in-progress) separation
// breach. A live violation is always the most urgent category, per
// SPEC_FULL.md §C.1's alert-level mapping.
func (k *Kernel) onViolation(level separation.AlertLevel, v model.Violation) {
	desc := fmt.Sprintf("separation violation between %s and %s: horizontal=%.1f vertical=%.1f",
		v.AircraftA, v.AircraftB, v.HorizontalSeparation, v.VerticalSeparation)
	k.sendAlert(bus.AlertLevelEmergency, desc)
}

// onPrediction publishes an ALERT for a predicted conflict past cooldown.
func (k *Kernel) onPrediction(level separation.AlertLevel, p model.Prediction) {
	bl := bus.AlertLevelWarning
	if p.RequiresImmediateAction {
		bl = bus.AlertLevelCritical
	}
	desc := fmt.Sprintf("predicted conflict between %s and %s: t_min=%.1fs min_separation=%.1f level=%s",
		p.AircraftA, p.AircraftB, p.TimeToViolation, p.MinSeparation, level)
	k.sendAlert(bl, desc)
}

func (k *Kernel) sendAlert(level uint8, description string) {
	msg := bus.NewAlert("separation", nowMS(), bus.Alert{Level: level, Description: description, TimestampMS: nowMS()})
	if err := k.transport.Send(msg); err != nil {
		k.log.WithError(err).Debug("failed to publish alert")
	}
}

// onResolution both applies a mandatory resolution advisory to the
// targeted aircraft and publishes it as a COMMAND message for any
// external consumer, matching original_source's sendResolutionCommand
// intent even though its body was never recovered (see DESIGN.md).
func (k *Kernel) onResolution(action model.ResolutionAction) {
	k.aircraftMu.RLock()
	ac, ok := k.aircraftByID[action.AircraftID]
	k.aircraftMu.RUnlock()

	if ok {
		var err error
		switch action.Type {
		case model.ResolutionAltitudeChange:
			err = ac.UpdateAltitude(action.Value)
		case model.ResolutionHeadingChange:
			err = ac.UpdateHeading(action.Value)
		case model.ResolutionSpeedChange:
			err = ac.UpdateSpeed(action.Value)
		case model.ResolutionEmergencyStop:
			ac.DeclareEmergency()
		}
		if err != nil {
			k.log.WithError(err).WithField("aircraft", action.AircraftID).Warn("failed to apply resolution action")
		}
	}

	msg := bus.NewCommand("separation", nowMS(), bus.Command{
		TargetID: action.AircraftID,
		Command:  action.Type.String(),
		Params:   []string{fmt.Sprintf("%.2f", action.Value)},
	})
	if err := k.transport.Send(msg); err != nil {
		k.log.WithError(err).Debug("failed to publish resolution command")
	}
}

// onCadence halves the separation engine's own task period under
// immediate-action pressure and restores the configured default
// otherwise (spec.md §4.4: adaptive engine cadence).
func (k *Kernel) onCadence(immediateActionPresent bool) {
	if immediateActionPresent {
		k.separationTask.SetPeriod(time.Duration(k.cfg.Intervals.ViolationCheckFastMS) * time.Millisecond)
	} else {
		k.separationTask.SetPeriod(time.Duration(k.cfg.Intervals.ViolationCheckMS) * time.Millisecond)
	}
}

// SubmitCommand enqueues one raw operator command line for asynchronous
// dispatch, per spec.md §7's bounded operator-command queue. The send
// never blocks: a full queue reports atcerr.ResourceExhaustion rather
// than applying backpressure to the caller.
func (k *Kernel) SubmitCommand(line string) error {
	select {
	case k.commandQueue <- line:
		return nil
	default:
		return fmt.Errorf("command queue full (capacity %d): %w", cap(k.commandQueue), atcerr.ResourceExhaustion)
	}
}

// runCommandQueue drains commandQueue until Stop closes commandDone,
// dispatching each line through ExecuteCommand and logging its outcome
// the way the kernel's other periodic tasks log failures.
func (k *Kernel) runCommandQueue() {
	for {
		select {
		case <-k.commandDone:
			return
		case line := <-k.commandQueue:
			tokens := strings.Fields(line)
			if len(tokens) == 0 {
				continue
			}
			result, err := k.ExecuteCommand(tokens)
			if err != nil {
				k.log.WithError(err).WithField("command", line).Warn("command rejected")
				continue
			}
			if result != "" {
				k.log.WithField("command", line).Info(result)
			}
		}
	}
}

// ExecuteCommand parses, validates, and dispatches one operator command
// against the live aircraft set.
func (k *Kernel) ExecuteCommand(tokens []string) (string, error) {
	pc, err := command.Parse(tokens)
	if err != nil {
		return "", err
	}
	if err := command.Validate(pc, k.cfg); err != nil {
		return "", err
	}

	switch pc.Name {
	case command.Help:
		if len(pc.Params) == 1 {
			return command.HelpFor(pc.Params[0]), nil
		}
		return command.HelpText(), nil

	case command.Status:
		return k.statusText(pc.AircraftID), nil

	case command.Altitude, command.Speed, command.Heading, command.Emergency:
		return "", k.dispatchAircraftCommand(pc)

	case command.Track, command.Display, command.Pause, command.Resume, command.Clear, command.Exit:
		// Display/operator-console surfaces are out of scope (spec.md §1);
		// these are accepted and validated but have no further effect here.
		return "", nil

	default:
		return "", fmt.Errorf("unhandled command %s: %w", pc.Name, atcerr.InvalidInput)
	}
}

func (k *Kernel) dispatchAircraftCommand(pc command.ParsedCommand) error {
	k.aircraftMu.RLock()
	ac, ok := k.aircraftByID[pc.AircraftID]
	k.aircraftMu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown aircraft %s: %w", pc.AircraftID, atcerr.InvalidInput)
	}

	switch pc.Name {
	case command.Altitude:
		v, _ := strconv.ParseFloat(pc.Params[0], 64)
		return ac.UpdateAltitude(v)
	case command.Speed:
		v, _ := strconv.ParseFloat(pc.Params[0], 64)
		return ac.UpdateSpeed(v)
	case command.Heading:
		v, _ := strconv.ParseFloat(pc.Params[0], 64)
		return ac.UpdateHeading(v)
	case command.Emergency:
		if strings.EqualFold(pc.Params[0], "ON") {
			ac.DeclareEmergency()
			k.onResolution(model.ResolutionAction{AircraftID: pc.AircraftID, Type: model.ResolutionEmergencyStop, Mandatory: true, Confidence: 1.0})
		} else {
			ac.CancelEmergency()
		}
		return nil
	}
	return nil
}

func (k *Kernel) statusText(id string) string {
	if id == "" {
		ids := k.registry.IDs()
		return fmt.Sprintf("%d aircraft tracked", len(ids))
	}
	s, ok := k.registry.Get(id)
	if !ok {
		return "unknown aircraft"
	}
	return fmt.Sprintf("%s: pos=(%.1f,%.1f,%.1f) speed=%.1f status=%s", s.ID, s.Position.X, s.Position.Y, s.Position.Z, s.Velocity.Speed(), s.Status)
}

// Metrics returns the kernel's current system metrics.
func (k *Kernel) Metrics() Metrics {
	checks, violations := k.engine.Stats()
	return Metrics{
		UptimeSeconds:      int64(time.Since(k.startedAt).Seconds()),
		ActiveAircraft:     k.registry.Len(),
		ViolationChecks:    checks,
		ViolationsDetected: violations,
	}
}

func nowMS() uint64 {
	return uint64(time.Now().UnixMilli())
}
