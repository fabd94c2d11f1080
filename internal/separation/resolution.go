package separation

import (
	"math"

	"github.com/curbz/atc-kernel/internal/geometry"
	"github.com/curbz/atc-kernel/internal/model"
)

// generateActions proposes zero or more resolution actions for one
// conflicting pair, one branch per spec.md §4.5 threshold: an altitude
// change when the pair's current vertical separation is already tight
// (|z1-z2| < 1.5*V_min, so widening it is the preferred fix), a
// speed-differential change when the pair's speeds are close enough
// that closure rate rather than crossing angle is the dominant risk
// (|speed1-speed2| < 50), and opposite-sense ±30° heading turns when
// their courses are close enough to be converging rather than
// crossing (|heading1-heading2| < 45°). Any, all, or none of the three
// may fire for a given pair; all returned actions share the pair's
// mandatory flag and confidence, since they address the same conflict
// event.
//
// Grounded on original_source/include/core/violation_detector.h's
// ResolutionAction{aircraft_id, action_type, value, is_mandatory}; the
// original's calculateResolutionActions body was not present to port
// from, so the per-branch target values (which aircraft descends, how
// the speed/heading adjustments are split across the pair) follow the
// Open Question decision recorded in DESIGN.md.
func generateActions(a, b model.State, mandatory bool, confidence float64, cfg Params) []model.ResolutionAction {
	var actions []model.ResolutionAction

	if geometry.VerticalSeparation(a.Position.Z, b.Position.Z) < 1.5*cfg.MinVertical {
		lower := a
		if b.Position.Z < a.Position.Z {
			lower = b
		}
		descendTo := geometry.Clamp(lower.Position.Z-cfg.MinVertical, cfg.AirspaceZMin, cfg.AirspaceZMax)
		actions = append(actions, model.ResolutionAction{
			AircraftID: lower.ID,
			Type:       model.ResolutionAltitudeChange,
			Value:      descendTo,
			Mandatory:  mandatory,
			Confidence: confidence,
		})
	}

	speedA, speedB := a.Velocity.Speed(), b.Velocity.Speed()
	if math.Abs(speedA-speedB) < 50 {
		target := geometry.Clamp(speedB+50, cfg.MinSpeed, cfg.MaxSpeed)
		actions = append(actions, model.ResolutionAction{
			AircraftID: b.ID,
			Type:       model.ResolutionSpeedChange,
			Value:      target,
			Mandatory:  mandatory,
			Confidence: confidence,
		})
	}

	headingA := geometry.HeadingFromVelocity(a.Velocity.VX, a.Velocity.VY)
	headingB := geometry.HeadingFromVelocity(b.Velocity.VX, b.Velocity.VY)
	if geometry.HeadingDelta(headingA, headingB) < 45 {
		actions = append(actions,
			model.ResolutionAction{
				AircraftID: a.ID,
				Type:       model.ResolutionHeadingChange,
				Value:      normalizeHeading(headingA + 30),
				Mandatory:  mandatory,
				Confidence: confidence,
			},
			model.ResolutionAction{
				AircraftID: b.ID,
				Type:       model.ResolutionHeadingChange,
				Value:      normalizeHeading(headingB - 30),
				Mandatory:  mandatory,
				Confidence: confidence,
			},
		)
	}

	return actions
}

// normalizeHeading wraps a heading in degrees into [0, 360).
func normalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}
