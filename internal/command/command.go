// Package command implements the kernel's post-parse operator-command
// contract: tokenised shape, per-command bound validation, and help
// text. The textual parser for raw console input (quoting, comments,
// line continuation) is out of scope — only the parsed shape and its
// validation rules are (spec.md §6: "Tokenised as {COMMAND,
// AIRCRAFT_ID?, params...}").
//
// Grounded on original_source/include/operator/command.h's
// CommandProcessor: its CommandDefinition{handler, info, min_params,
// max_params} registry becomes a Go map of Definition values without a
// handler function — dispatch against a live aircraft/registry belongs
// to internal/kernel, not to the command-shape package — and its
// getHelpText/getCommandHelp are ported directly (§C.4 of the expanded
// spec).
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/curbz/atc-kernel/internal/atcerr"
	"github.com/curbz/atc-kernel/internal/config"
)

// Name is a canonical (alias-resolved, upper-cased) command name.
type Name string

const (
	Altitude  Name = "ALTITUDE"
	Speed     Name = "SPEED"
	Heading   Name = "HEADING"
	Emergency Name = "EMERGENCY"
	Status    Name = "STATUS"
	Track     Name = "TRACK"
	Help      Name = "HELP"
	Display   Name = "DISPLAY"
	Pause     Name = "PAUSE"
	Resume    Name = "RESUME"
	Clear     Name = "CLEAR"
	Exit      Name = "EXIT"
)

// aliases maps the short and long spellings spec.md §6 lists to their
// canonical Name.
var aliases = map[string]Name{
	"ALT": Altitude, "ALTITUDE": Altitude,
	"SPD": Speed, "SPEED": Speed,
	"HDG": Heading, "HEADING": Heading,
	"EMERG": Emergency, "EMERGENCY": Emergency,
	"STATUS": Status,
	"TRACK":  Track,
	"HELP":   Help,
	"DISPLAY": Display,
	"PAUSE":  Pause,
	"RESUME": Resume,
	"CLEAR":  Clear,
	"EXIT":   Exit,
}

const (
	minAircraftIDLength = 3
	maxAircraftIDLength = 10
)

// Info documents one command's syntax, description, and examples, for
// Help output.
type Info struct {
	Syntax      string
	Description string
	Examples    []string
}

// ParsedCommand is the shape every recognised command reduces to:
// a canonical name, an optional target aircraft ID, and its remaining
// parameters.
type ParsedCommand struct {
	Name       Name
	AircraftID string
	Params     []string
}

// Parse builds a ParsedCommand from pre-tokenised input (whitespace
// already split, case folding not yet applied). It returns
// atcerr.InvalidInput for an empty token list or an unrecognised
// command name; it does not validate parameter bounds, which Validate
// does separately so that shape and bounds can be checked
// independently (spec.md §6: "Unknown or malformed commands produce an
// error result and emit no message").
func Parse(tokens []string) (ParsedCommand, error) {
	if len(tokens) == 0 {
		return ParsedCommand{}, fmt.Errorf("empty command: %w", atcerr.InvalidInput)
	}

	name, ok := aliases[strings.ToUpper(tokens[0])]
	if !ok {
		return ParsedCommand{}, fmt.Errorf("unknown command %q: %w", tokens[0], atcerr.InvalidInput)
	}

	rest := tokens[1:]
	pc := ParsedCommand{Name: name}

	if takesAircraftID(name) && len(rest) > 0 {
		pc.AircraftID = rest[0]
		rest = rest[1:]
	}
	pc.Params = rest
	return pc, nil
}

// takesAircraftID reports whether a command's first parameter is an
// aircraft ID rather than an ordinary parameter. STATUS and TRACK take
// an optional ID; HELP's first parameter is a command name, not an
// aircraft ID, so it is excluded here.
func takesAircraftID(n Name) bool {
	switch n {
	case Altitude, Speed, Heading, Emergency, Status, Track:
		return true
	default:
		return false
	}
}

// Validate checks a ParsedCommand's parameter count and bounds against
// cfg, returning atcerr.InvalidInput for shape problems (wrong
// parameter count, unparseable numbers, malformed aircraft ID) and
// atcerr.OutOfRange for a well-formed value outside its bounds.
func Validate(pc ParsedCommand, cfg *config.Config) error {
	switch pc.Name {
	case Altitude:
		if err := validateAircraftID(pc.AircraftID); err != nil {
			return err
		}
		v, err := requireFloatParam(pc.Params, 0, "altitude")
		if err != nil {
			return err
		}
		if v < cfg.Airspace.ZMin || v > cfg.Airspace.ZMax {
			return fmt.Errorf("altitude %.2f outside [%.2f, %.2f]: %w", v, cfg.Airspace.ZMin, cfg.Airspace.ZMax, atcerr.OutOfRange)
		}
		return nil

	case Speed:
		if err := validateAircraftID(pc.AircraftID); err != nil {
			return err
		}
		v, err := requireFloatParam(pc.Params, 0, "speed")
		if err != nil {
			return err
		}
		if v < cfg.Performance.MinSpeed || v > cfg.Performance.MaxSpeed {
			return fmt.Errorf("speed %.2f outside [%.2f, %.2f]: %w", v, cfg.Performance.MinSpeed, cfg.Performance.MaxSpeed, atcerr.OutOfRange)
		}
		return nil

	case Heading:
		if err := validateAircraftID(pc.AircraftID); err != nil {
			return err
		}
		v, err := requireFloatParam(pc.Params, 0, "heading")
		if err != nil {
			return err
		}
		if v < 0 || v >= 360 {
			return fmt.Errorf("heading %.2f outside [0, 360): %w", v, atcerr.OutOfRange)
		}
		return nil

	case Emergency:
		if err := validateAircraftID(pc.AircraftID); err != nil {
			return err
		}
		if len(pc.Params) != 1 {
			return fmt.Errorf("EMERGENCY requires exactly one ON/OFF parameter: %w", atcerr.InvalidInput)
		}
		switch strings.ToUpper(pc.Params[0]) {
		case "ON", "OFF":
			return nil
		default:
			return fmt.Errorf("EMERGENCY parameter must be ON or OFF, got %q: %w", pc.Params[0], atcerr.InvalidInput)
		}

	case Status:
		if pc.AircraftID != "" {
			return validateAircraftID(pc.AircraftID)
		}
		return nil

	case Track:
		if pc.AircraftID == "NONE" || pc.AircraftID == "" {
			return nil
		}
		return validateAircraftID(pc.AircraftID)

	case Help:
		if len(pc.Params) > 1 {
			return fmt.Errorf("HELP accepts at most one parameter: %w", atcerr.InvalidInput)
		}
		return nil

	case Display:
		v, err := requireFloatParam(pc.Params, 0, "rate")
		if err != nil {
			return err
		}
		if v <= 0 {
			return fmt.Errorf("display rate must be positive: %w", atcerr.OutOfRange)
		}
		return nil

	case Pause, Resume, Clear, Exit:
		if len(pc.Params) != 0 || pc.AircraftID != "" {
			return fmt.Errorf("%s takes no parameters: %w", pc.Name, atcerr.InvalidInput)
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q: %w", pc.Name, atcerr.InvalidInput)
	}
}

func validateAircraftID(id string) error {
	if len(id) < minAircraftIDLength || len(id) > maxAircraftIDLength {
		return fmt.Errorf("aircraft id %q must be %d-%d characters: %w", id, minAircraftIDLength, maxAircraftIDLength, atcerr.InvalidInput)
	}
	for _, r := range id {
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return fmt.Errorf("aircraft id %q must be alphanumeric: %w", id, atcerr.InvalidInput)
		}
	}
	return nil
}

func requireFloatParam(params []string, i int, label string) (float64, error) {
	if i >= len(params) {
		return 0, fmt.Errorf("missing %s parameter: %w", label, atcerr.InvalidInput)
	}
	v, err := strconv.ParseFloat(params[i], 64)
	if err != nil {
		return 0, fmt.Errorf("%s parameter %q is not numeric: %w", label, params[i], atcerr.InvalidInput)
	}
	return v, nil
}
