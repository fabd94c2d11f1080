// Package radar implements the kernel's two-cadence surveillance task:
// a primary scan that produces noisy position returns and a secondary
// interrogation that emits POSITION_UPDATE reports for every currently
// tracked aircraft.
//
// Grounded on original_source/src/core/radar_system.cpp's RadarSystem,
// whose single PeriodicTask runs at the faster (SSR) cadence and checks
// elapsed wall-clock time against the slower (PSR) cadence on each
// cycle, rather than running two separate tasks — kept here as one
// clock.Task ticking at the SSR interval, gating the PSR scan the same
// way. Track-quality gain/decay/eviction mirrors performPrimaryScan,
// updateTracks, and cleanupStaleTracks. Noise generation follows the
// teacher's internal/atc/atcvoicemanager.go's *rand.Rand-per-component
// idiom rather than the top-level math/rand functions.
package radar

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/curbz/atc-kernel/internal/config"
	"github.com/curbz/atc-kernel/internal/geometry"
	"github.com/curbz/atc-kernel/internal/model"
)

// Source supplies the ground-truth aircraft states the radar scans.
// The kernel wires this to a registry.Registry's Snapshot method.
type Source func() []model.State

// Publisher receives one POSITION_UPDATE-worthy state per tracked
// aircraft on every secondary interrogation. The kernel wires this to
// the message bus.
type Publisher func(model.State)

// Track is one aircraft's radar-observed state, distinct from its
// ground-truth state: the position carries scan noise, and quality
// decays when a primary scan is missed or the track goes stale.
type Track struct {
	State     model.State
	Quality   int
	UpdatedAt time.Time
}

// Tracker runs the PSR/SSR scan cycle. It holds no reference to
// individual aircraft; it pulls ground truth from Source each cycle.
type Tracker struct {
	mu     sync.Mutex
	tracks map[string]Track

	source  Source
	publish Publisher
	log     *logrus.Entry
	rng     *rand.Rand

	airspace geometry.Box

	psrPeriod       time.Duration
	lastPrimaryScan time.Time

	positionNoise   float64
	minTrackQuality int
	maxTrackAgeMS   int
	qualityGain     int
	qualityDecay    int
	staleAfterMS    int

	primaryScans     int
	secondaryScans   int
}

// New constructs a Tracker. The returned Tracker is not running until a
// caller drives Cycle periodically (the kernel wires this through a
// clock.Task at the SSR interval).
func New(cfg *config.Config, source Source, publish Publisher, log *logrus.Entry) *Tracker {
	return &Tracker{
		tracks:  make(map[string]Track),
		source:  source,
		publish: publish,
		log:     log.WithField("component", "radar"),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		airspace: geometry.Box{
			XMin: cfg.Airspace.XMin, XMax: cfg.Airspace.XMax,
			YMin: cfg.Airspace.YMin, YMax: cfg.Airspace.YMax,
			ZMin: cfg.Airspace.ZMin, ZMax: cfg.Airspace.ZMax,
		},
		psrPeriod:       time.Duration(cfg.Intervals.PSRScanMS) * time.Millisecond,
		positionNoise:   cfg.Radar.PositionNoise,
		minTrackQuality: cfg.Radar.MinTrackQuality,
		maxTrackAgeMS:   cfg.Radar.MaxTrackAgeMS,
		qualityGain:     cfg.Radar.QualityGain,
		qualityDecay:    cfg.Radar.QualityDecay,
		staleAfterMS:    cfg.Radar.StaleAfterMS,
	}
}

// Cycle runs one SSR-cadence tick: a gated primary scan, a secondary
// interrogation of every track, aging, and stale-track cleanup.
func (r *Tracker) Cycle() error {
	now := time.Now()

	r.mu.Lock()
	duePrimary := r.lastPrimaryScan.IsZero() || now.Sub(r.lastPrimaryScan) >= r.psrPeriod
	r.mu.Unlock()

	if duePrimary {
		r.performPrimaryScan(now)
		r.mu.Lock()
		r.lastPrimaryScan = now
		r.mu.Unlock()
	}

	r.performSecondaryInterrogation()
	r.updateTracks(now)
	r.cleanupStaleTracks(now)
	return nil
}

func (r *Tracker) noise() float64 {
	return r.positionNoise*2*r.rng.Float64() - r.positionNoise
}

func (r *Tracker) performPrimaryScan(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Read the source under r.mu so a concurrent Forget either sees this
	// scan's writes and removes them, or the scan sees a source that no
	// longer lists the forgotten aircraft.
	truth := r.source()
	r.primaryScans++

	for _, s := range truth {
		dx, dy, dz := r.noise(), r.noise(), r.noise()
		detected := model.Position{X: s.Position.X + dx, Y: s.Position.Y + dy, Z: s.Position.Z + dz}
		if !r.airspace.Contains(detected.X, detected.Y, detected.Z) {
			continue
		}

		t, ok := r.tracks[s.ID]
		if !ok {
			// A new track starts at the retention threshold; this
			// observation's gain is applied below like any other.
			t = Track{State: s, Quality: r.minTrackQuality}
		}
		t.State = s
		t.State.Position = detected
		t.UpdatedAt = now
		t.Quality = min(100, t.Quality+r.qualityGain)
		r.tracks[s.ID] = t
	}

	r.log.WithField("scan_count", r.primaryScans).Debug("completed primary radar scan")
}

func (r *Tracker) performSecondaryInterrogation() {
	r.mu.Lock()
	r.secondaryScans++
	snap := make([]model.State, 0, len(r.tracks))
	for _, t := range r.tracks {
		snap = append(snap, t.State)
	}
	r.mu.Unlock()

	if r.publish == nil {
		return
	}
	for _, s := range snap {
		r.publish(s)
	}
}

func (r *Tracker) updateTracks(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.tracks {
		age := now.Sub(t.UpdatedAt)
		if age > time.Duration(r.staleAfterMS)*time.Millisecond {
			t.Quality = max(0, t.Quality-r.qualityDecay)
			r.tracks[id] = t
		}
	}
}

func (r *Tracker) cleanupStaleTracks(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.tracks {
		age := now.Sub(t.UpdatedAt)
		if age > time.Duration(r.maxTrackAgeMS)*time.Millisecond || t.Quality < r.minTrackQuality {
			delete(r.tracks, id)
			r.log.WithField("aircraft", id).Info("removing stale radar track")
		}
	}
}

// TrackedAircraft returns the states of all tracks whose quality meets
// the minimum threshold.
func (r *Tracker) TrackedAircraft() []model.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.State, 0, len(r.tracks))
	for _, t := range r.tracks {
		if t.Quality >= r.minTrackQuality {
			out = append(out, t.State)
		}
	}
	return out
}

// IsTracked reports whether id has a track meeting the minimum quality
// threshold.
func (r *Tracker) IsTracked(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tracks[id]
	return ok && t.Quality >= r.minTrackQuality
}

// TrackCount returns the number of tracks currently held, regardless of
// quality.
func (r *Tracker) TrackCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tracks)
}

// Forget removes id's track, if any, called when the registry retires
// an aircraft (spec.md §4.6: "Remove also purges any dependent state in
// ... the Radar Tracker's track set").
func (r *Tracker) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tracks, id)
}
