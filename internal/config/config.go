// Package config loads the kernel's tunable parameters from YAML,
// following the teacher's generic LoadConfig[T] pattern.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Airspace describes the rectangular prism in which aircraft positions
// are considered valid.
type Airspace struct {
	XMin float64 `yaml:"x_min"`
	XMax float64 `yaml:"x_max"`
	YMin float64 `yaml:"y_min"`
	YMax float64 `yaml:"y_max"`
	ZMin float64 `yaml:"z_min"`
	ZMax float64 `yaml:"z_max"`
}

// Performance carries the aircraft speed envelope.
type Performance struct {
	MinSpeed float64 `yaml:"min_speed"`
	MaxSpeed float64 `yaml:"max_speed"`
}

// Intervals carries the periodic-task cadences, in milliseconds.
type Intervals struct {
	PositionUpdateMS      int `yaml:"position_update_ms"`
	PSRScanMS             int `yaml:"psr_scan_ms"`
	SSRInterrogationMS    int `yaml:"ssr_interrogation_ms"`
	ViolationCheckMS      int `yaml:"violation_check_ms"`
	ViolationCheckFastMS  int `yaml:"violation_check_fast_ms"`
	HistoryLoggingMS      int `yaml:"history_logging_ms"`
}

// Priorities carries the advisory thread priorities (§5): higher integer
// is more urgent.
type Priorities struct {
	Radar       int `yaml:"radar"`
	Separation  int `yaml:"separation"`
	Aircraft    int `yaml:"aircraft"`
	Display     int `yaml:"display"`
	Logging     int `yaml:"logging"`
	Operator    int `yaml:"operator"`
}

// Radar carries radar-track quality/aging parameters.
type Radar struct {
	PositionNoise    float64 `yaml:"position_noise"`
	MinTrackQuality  int     `yaml:"min_track_quality"`
	MaxTrackAgeMS    int     `yaml:"max_track_age_ms"`
	QualityGain      int     `yaml:"quality_gain"`
	QualityDecay     int     `yaml:"quality_decay"`
	StaleAfterMS     int     `yaml:"stale_after_ms"`
}

// Separation carries the separation-engine parameters of spec.md §4.4.
type Separation struct {
	MinHorizontal            float64 `yaml:"min_horizontal_separation"`
	MinVertical               float64 `yaml:"min_vertical_separation"`
	LookaheadSeconds          float64 `yaml:"lookahead_seconds"`
	MaxLookaheadSeconds       float64 `yaml:"max_lookahead_seconds"`
	WarningCooldownSeconds    float64 `yaml:"warning_cooldown_seconds"`
	EarlyThreshold            float64 `yaml:"early_threshold"`
	CriticalThreshold         float64 `yaml:"critical_threshold"`
	ImmediateActionThreshold  float64 `yaml:"immediate_action_threshold"`
	ImmediateActionSeconds    float64 `yaml:"immediate_action_seconds"`
}

// Config is the root of the kernel's YAML configuration. Load starts
// from Defaults(), so fields the YAML file does not name keep their
// default values; a field the file sets explicitly, even to zero, takes
// the file's value.
type Config struct {
	Airspace    Airspace    `yaml:"airspace"`
	Performance Performance `yaml:"performance"`
	Intervals   Intervals   `yaml:"intervals"`
	Priorities  Priorities  `yaml:"priorities"`
	Radar       Radar       `yaml:"radar"`
	Separation  Separation  `yaml:"separation"`
	CommandQueueSize int    `yaml:"command_queue_size"`
}

// Defaults returns the constants spec.md §4 and the original C++
// constants.cpp specify.
func Defaults() Config {
	return Config{
		Airspace: Airspace{
			XMin: 0, XMax: 100000,
			YMin: 0, YMax: 100000,
			ZMin: 15000, ZMax: 25000,
		},
		Performance: Performance{
			MinSpeed: 150,
			MaxSpeed: 500,
		},
		Intervals: Intervals{
			PositionUpdateMS:     1000,
			PSRScanMS:            4000,
			SSRInterrogationMS:   1000,
			ViolationCheckMS:     1000,
			ViolationCheckFastMS: 500,
			HistoryLoggingMS:     30000,
		},
		Priorities: Priorities{
			Radar:      20,
			Separation: 18,
			Aircraft:   16,
			Display:    14,
			Logging:    12,
			Operator:   10,
		},
		Radar: Radar{
			PositionNoise:   50,
			MinTrackQuality: 30,
			MaxTrackAgeMS:   10000,
			QualityGain:     10,
			QualityDecay:    5,
			StaleAfterMS:    1000,
		},
		Separation: Separation{
			MinHorizontal:           3000,
			MinVertical:             1000,
			LookaheadSeconds:        180,
			MaxLookaheadSeconds:     300,
			WarningCooldownSeconds:  15,
			EarlyThreshold:          3.0,
			CriticalThreshold:       1.5,
			ImmediateActionThreshold: 1.2,
			ImmediateActionSeconds:  30,
		},
		CommandQueueSize: 100,
	}
}

// Load reads path as YAML over Defaults(), so a config file only needs to
// name the fields it overrides. A missing path is not an error: the
// defaults are used as-is, matching how the teacher's simulator can run
// against a bare config.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}
