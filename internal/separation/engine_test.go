package separation

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/curbz/atc-kernel/internal/config"
	"github.com/curbz/atc-kernel/internal/logging"
	"github.com/curbz/atc-kernel/internal/model"
)

func testParams() Params {
	cfg := config.Defaults()
	return ParamsFromConfig(&cfg)
}

func testLogEntry() *logrus.Entry {
	return logging.For(logging.New(false), "test")
}

func TestCheckCurrentViolationDetectsBothAxesBreached(t *testing.T) {
	p := testParams()
	a := model.State{ID: "AC1", Position: model.Position{X: 0, Y: 0, Z: 20000}}
	b := model.State{ID: "AC2", Position: model.Position{X: 1000, Y: 0, Z: 20500}}

	v, ok := checkCurrentViolation(a, b, p, time.Now())
	if !ok {
		t.Fatalf("expected violation: horizontal=1000 < %v, vertical=500 < %v", p.MinHorizontal, p.MinVertical)
	}
	if v.HorizontalSeparation != 1000 || v.VerticalSeparation != 500 {
		t.Fatalf("unexpected violation values: %+v", v)
	}
}

func TestCheckCurrentViolationRequiresBothAxes(t *testing.T) {
	p := testParams()
	// Horizontal breached but vertical separation is safe.
	a := model.State{ID: "AC1", Position: model.Position{X: 0, Y: 0, Z: 20000}}
	b := model.State{ID: "AC2", Position: model.Position{X: 1000, Y: 0, Z: 25000}}

	if _, ok := checkCurrentViolation(a, b, p, time.Now()); ok {
		t.Fatalf("expected no violation when only horizontal separation is breached")
	}
}

func TestPredictHeadOnScenario(t *testing.T) {
	p := testParams()
	a := model.State{ID: "AC1", Position: model.Position{X: 40000, Y: 50000, Z: 20000}, Velocity: model.Velocity{VX: 400}}
	b := model.State{ID: "AC2", Position: model.Position{X: 60000, Y: 50000, Z: 20000}, Velocity: model.Velocity{VX: -400}}

	pred, tMin := predict(a, b, p, time.Now())
	if tMin < 24.9 || tMin > 25.1 {
		t.Fatalf("expected t_min approx 25s, got %v", tMin)
	}
	if pred.MinSeparation > 1e-6 {
		t.Fatalf("expected near-zero minimum separation for head-on collision course, got %v", pred.MinSeparation)
	}
	if !pred.RequiresImmediateAction {
		t.Fatalf("expected requires_immediate_action for a predicted collision")
	}
}

func TestEngineCycleEmitsAlertForCurrentViolation(t *testing.T) {
	p := testParams()
	var gotViolation model.Violation
	var gotCommands []model.ResolutionAction

	e := New(p, testLogEntry(), func(level AlertLevel, v model.Violation) {
		gotViolation = v
	}, nil, func(a model.ResolutionAction) {
		gotCommands = append(gotCommands, a)
	}, nil)

	states := []model.State{
		{ID: "AC1", Position: model.Position{X: 0, Y: 0, Z: 20000}},
		{ID: "AC2", Position: model.Position{X: 1000, Y: 0, Z: 20500}},
	}
	if err := e.Cycle(states); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotViolation.AircraftA == "" {
		t.Fatalf("expected a violation alert to be emitted")
	}
	if len(gotCommands) == 0 {
		t.Fatalf("expected resolution commands for a current violation")
	}
}

func TestEngineCooldownSuppressesRepeatPredictiveAlerts(t *testing.T) {
	p := testParams()
	p.WarningCooldownSeconds = 60

	count := 0
	e := New(p, testLogEntry(), nil, func(level AlertLevel, pr model.Prediction) {
		count++
	}, nil, nil)

	// Converging but not imminent: t_min=100s (< lookahead, >= 30s) and
	// minimum separation of 5000 units (< early threshold's 9000, but >=
	// immediate threshold's 3600), so requires_immediate_action is false
	// and cooldown gating applies.
	states := []model.State{
		{ID: "AC1", Position: model.Position{X: 0, Y: 0, Z: 20000}, Velocity: model.Velocity{VX: 50}},
		{ID: "AC2", Position: model.Position{X: 10000, Y: 5000, Z: 20000}, Velocity: model.Velocity{VX: -50}},
	}

	e.Cycle(states)
	e.Cycle(states)
	if count != 1 {
		t.Fatalf("expected cooldown to suppress the second predictive alert, got %d alerts", count)
	}
}

func TestCadenceAdjusterCalledEachCycle(t *testing.T) {
	p := testParams()
	calls := 0
	var lastImmediate bool
	e := New(p, testLogEntry(), nil, nil, nil, func(immediate bool) {
		calls++
		lastImmediate = immediate
	})

	e.Cycle(nil)
	if calls != 1 {
		t.Fatalf("expected cadence adjuster called once per cycle, got %d", calls)
	}
	if lastImmediate {
		t.Fatalf("expected no immediate action present for an empty cycle")
	}
}
