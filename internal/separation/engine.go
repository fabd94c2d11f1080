// Package separation implements the kernel's conflict-detection and
// resolution-advisory engine: a current-violation test run every cycle
// against every aircraft pair, a closed-form predictive test for pairs
// that are not yet in violation but converging, and a cooldown-gated
// warning/resolution pipeline.
//
// Grounded on original_source/src/core/violation_detector.cpp's
// ViolationDetector: checkPairViolation (current violation),
// predictViolation/calculateTimeToMinimumSeparation (predictive test,
// linear closest-approach form per the Open Question decision in
// DESIGN.md), and the EARLY/CRITICAL/IMMEDIATE_ACTION thresholds
// expressed as multiples of the minimum horizontal separation. The
// original's conflict_queue_ (dequeue-time cooldown gating) is replaced
// by spec.md's detection-time WarningCooldownMap, implemented in
// cooldown.go — also an Open Question decision recorded in DESIGN.md.
package separation

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/curbz/atc-kernel/internal/config"
	"github.com/curbz/atc-kernel/internal/geometry"
	"github.com/curbz/atc-kernel/internal/model"
)

// Params is the subset of config.Config the engine needs, copied out so
// the engine does not hold a pointer to the whole configuration tree.
type Params struct {
	MinHorizontal             float64
	MinVertical               float64
	AirspaceZMin              float64
	AirspaceZMax              float64
	MinSpeed                  float64
	MaxSpeed                  float64
	LookaheadSeconds          float64
	EarlyThreshold            float64
	CriticalThreshold         float64
	ImmediateActionThreshold  float64
	ImmediateActionSeconds    float64
	WarningCooldownSeconds    float64
}

// ParamsFromConfig extracts an Engine's Params from a full config.Config.
// LookaheadSeconds is clamped to MaxLookaheadSeconds, per spec.md §4.4's
// "bounded by MAX_LOOKAHEAD (300s)" invariant.
func ParamsFromConfig(cfg *config.Config) Params {
	lookahead := cfg.Separation.LookaheadSeconds
	if lookahead > cfg.Separation.MaxLookaheadSeconds {
		lookahead = cfg.Separation.MaxLookaheadSeconds
	}
	return Params{
		MinHorizontal:            cfg.Separation.MinHorizontal,
		MinVertical:              cfg.Separation.MinVertical,
		AirspaceZMin:             cfg.Airspace.ZMin,
		AirspaceZMax:             cfg.Airspace.ZMax,
		MinSpeed:                 cfg.Performance.MinSpeed,
		MaxSpeed:                 cfg.Performance.MaxSpeed,
		LookaheadSeconds:         lookahead,
		EarlyThreshold:           cfg.Separation.EarlyThreshold,
		CriticalThreshold:        cfg.Separation.CriticalThreshold,
		ImmediateActionThreshold: cfg.Separation.ImmediateActionThreshold,
		ImmediateActionSeconds:   cfg.Separation.ImmediateActionSeconds,
		WarningCooldownSeconds:   cfg.Separation.WarningCooldownSeconds,
	}
}

// AlertLevel classifies a predictive warning's urgency, per spec.md §4.4
// (EARLY/CRITICAL/IMMEDIATE_ACTION as multiples of MinHorizontal).
type AlertLevel int

const (
	AlertEarly AlertLevel = iota
	AlertCritical
	AlertImmediateAction
)

func (l AlertLevel) String() string {
	switch l {
	case AlertEarly:
		return "EARLY"
	case AlertCritical:
		return "CRITICAL"
	case AlertImmediateAction:
		return "IMMEDIATE_ACTION"
	default:
		return "UNKNOWN"
	}
}

// AlertHandler receives a current violation; predictive warnings go to
// PredictionHandler instead. The kernel wires this to an ALERT message
// publisher.
type AlertHandler func(level AlertLevel, v model.Violation)

// PredictionHandler receives a predictive warning distinct from a
// current violation. The kernel wires this to an ALERT message
// publisher as well, tagged as predicted rather than current.
type PredictionHandler func(level AlertLevel, p model.Prediction)

// CommandHandler receives a resolution advisory. The kernel wires this
// to a COMMAND message publisher.
type CommandHandler func(model.ResolutionAction)

// CadenceAdjuster is called once per cycle with whether any pair this
// cycle required immediate action, so the kernel can halve the engine's
// own periodic task period under pressure and restore it otherwise
// (spec.md §4.4: adaptive engine cadence).
type CadenceAdjuster func(immediateActionPresent bool)

// Engine runs the per-cycle conflict check over a snapshot of aircraft
// states.
type Engine struct {
	mu       sync.Mutex
	params   Params
	cooldown *Cooldown
	log      *logrus.Entry

	onViolation  AlertHandler
	onPrediction PredictionHandler
	onCommand    CommandHandler
	onCadence    CadenceAdjuster

	checksRun        int
	violationsFound  int
}

// New constructs an Engine. Any handler may be nil to skip that output.
func New(params Params, log *logrus.Entry, onViolation AlertHandler, onPrediction PredictionHandler, onCommand CommandHandler, onCadence CadenceAdjuster) *Engine {
	return &Engine{
		params:       params,
		cooldown:     NewCooldown(time.Duration(params.WarningCooldownSeconds * float64(time.Second))),
		log:          log.WithField("component", "separation"),
		onViolation:  onViolation,
		onPrediction: onPrediction,
		onCommand:    onCommand,
		onCadence:    onCadence,
	}
}

// Cycle runs one check pass over every unordered pair in states.
func (e *Engine) Cycle(states []model.State) error {
	now := time.Now()
	e.mu.Lock()
	e.checksRun++
	e.mu.Unlock()

	immediatePresent := false

	for i := 0; i < len(states); i++ {
		for j := i + 1; j < len(states); j++ {
			a, b := states[i], states[j]

			if v, ok := checkCurrentViolation(a, b, e.params, now); ok {
				e.mu.Lock()
				e.violationsFound++
				e.mu.Unlock()
				e.log.WithFields(logrus.Fields{
					"aircraft_a":   v.AircraftA,
					"aircraft_b":   v.AircraftB,
					"horizontal":   v.HorizontalSeparation,
					"vertical":     v.VerticalSeparation,
				}).Warn("separation violation in progress")

				immediatePresent = true
				if e.onViolation != nil {
					e.onViolation(AlertImmediateAction, v)
				}
				for _, action := range generateActions(a, b, true, 1.0, e.params) {
					if e.onCommand != nil {
						e.onCommand(action)
					}
				}
				continue
			}

			p, tMin := predict(a, b, e.params, now)
			if tMin >= e.params.LookaheadSeconds || p.MinSeparation >= e.params.MinHorizontal*e.params.EarlyThreshold {
				continue
			}

			level := classify(p.MinSeparation, e.params)
			if p.RequiresImmediateAction {
				immediatePresent = true
			}

			if e.cooldown.Allow(a.ID, b.ID, now) {
				if e.onPrediction != nil {
					e.onPrediction(level, p)
				}
				confidence := predictionConfidence(p.MinSeparation, e.params)
				for _, action := range generateActions(a, b, p.RequiresImmediateAction, confidence, e.params) {
					if p.RequiresImmediateAction && e.onCommand != nil {
						e.onCommand(action)
					}
				}
			}
		}
	}

	e.cooldown.Prune(now)
	if e.onCadence != nil {
		e.onCadence(immediatePresent)
	}
	return nil
}

// checkCurrentViolation implements checkPairViolation: both horizontal
// AND vertical separation below minimums simultaneously.
func checkCurrentViolation(a, b model.State, p Params, now time.Time) (model.Violation, bool) {
	h := geometry.HorizontalSeparation(a.Position.X, a.Position.Y, b.Position.X, b.Position.Y)
	v := geometry.VerticalSeparation(a.Position.Z, b.Position.Z)

	if h < p.MinHorizontal && v < p.MinVertical {
		return model.Violation{
			AircraftA:            a.ID,
			AircraftB:            b.ID,
			HorizontalSeparation: h,
			VerticalSeparation:   v,
			DetectedAt:           now,
		}, true
	}
	return model.Violation{}, false
}

// predict implements predictViolation: closed-form time to minimum
// horizontal separation, then the planar distance at that time.
func predict(a, b model.State, p Params, now time.Time) (model.Prediction, float64) {
	tMin := geometry.TimeToMinimumSeparation(
		a.Position.X, a.Position.Y, a.Velocity.VX, a.Velocity.VY,
		b.Position.X, b.Position.Y, b.Velocity.VX, b.Velocity.VY,
	)
	minSep := geometry.PlanarDistanceAt(
		a.Position.X, a.Position.Y, a.Velocity.VX, a.Velocity.VY,
		b.Position.X, b.Position.Y, b.Velocity.VX, b.Velocity.VY,
		tMin,
	)

	requiresImmediate := tMin < p.ImmediateActionSeconds || minSep < p.MinHorizontal*p.ImmediateActionThreshold

	return model.Prediction{
		AircraftA:               a.ID,
		AircraftB:               b.ID,
		TimeToViolation:         tMin,
		MinSeparation:           minSep,
		RequiresImmediateAction: requiresImmediate,
		PredictedAt:             now,
	}, tMin
}

// predictionConfidence maps a predicted minimum separation to a [0,1]
// confidence that the conflict is real, per spec.md §4.5 ("each action
// carries a confidence ∈ [0,1]"): 1.0 right at the minimum horizontal
// separation, tapering linearly to 0 at the early-warning threshold.
func predictionConfidence(minSeparation float64, p Params) float64 {
	span := p.MinHorizontal*p.EarlyThreshold - p.MinHorizontal
	if span <= 0 {
		return 1.0
	}
	c := 1 - (minSeparation-p.MinHorizontal)/span
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func classify(minSeparation float64, p Params) AlertLevel {
	switch {
	case minSeparation < p.MinHorizontal*p.ImmediateActionThreshold:
		return AlertImmediateAction
	case minSeparation < p.MinHorizontal*p.CriticalThreshold:
		return AlertCritical
	default:
		return AlertEarly
	}
}

// Stats returns the number of cycles run and the number of current
// (non-predictive) violations found across the engine's lifetime.
func (e *Engine) Stats() (checks, violations int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checksRun, e.violationsFound
}

// Forget purges any cooldown entry referencing id, called when the
// registry retires an aircraft (spec.md §4.6: "Remove also purges any
// dependent state in the Separation Engine's cooldown map").
func (e *Engine) Forget(id string) {
	e.cooldown.Forget(id)
}
