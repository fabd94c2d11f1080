package command

import "strings"

// infos is the help registry, ported from
// original_source/include/operator/command.h's CommandInfo entries
// (syntax/description/examples per command).
var infos = map[Name]Info{
	Altitude: {
		Syntax:      "ALT|ALTITUDE <id> <ft>",
		Description: "Instruct an aircraft to change altitude.",
		Examples:    []string{"ALT AC123 21000"},
	},
	Speed: {
		Syntax:      "SPD|SPEED <id> <knots>",
		Description: "Instruct an aircraft to change speed.",
		Examples:    []string{"SPEED AC123 300"},
	},
	Heading: {
		Syntax:      "HDG|HEADING <id> <deg>",
		Description: "Instruct an aircraft to change heading.",
		Examples:    []string{"HDG AC123 090"},
	},
	Emergency: {
		Syntax:      "EMERG|EMERGENCY <id> {ON|OFF}",
		Description: "Declare or cancel an aircraft emergency.",
		Examples:    []string{"EMERGENCY AC123 ON", "EMERGENCY AC123 OFF"},
	},
	Status: {
		Syntax:      "STATUS [id]",
		Description: "Report status for one aircraft, or all aircraft if omitted.",
		Examples:    []string{"STATUS", "STATUS AC123"},
	},
	Track: {
		Syntax:      "TRACK {<id>|NONE}",
		Description: "Focus the display on one aircraft, or clear the focus.",
		Examples:    []string{"TRACK AC123", "TRACK NONE"},
	},
	Help: {
		Syntax:      "HELP [cmd]",
		Description: "List all commands, or show detailed help for one command.",
		Examples:    []string{"HELP", "HELP ALTITUDE"},
	},
	Display: {
		Syntax:      "DISPLAY <rate>",
		Description: "Set the display refresh rate in milliseconds.",
		Examples:    []string{"DISPLAY 5000"},
	},
	Pause: {
		Syntax:      "PAUSE",
		Description: "Pause the simulation clock.",
	},
	Resume: {
		Syntax:      "RESUME",
		Description: "Resume the simulation clock.",
	},
	Clear: {
		Syntax:      "CLEAR",
		Description: "Clear the display.",
	},
	Exit: {
		Syntax:      "EXIT",
		Description: "Shut down the system.",
	},
}

// order fixes the listing order of HelpText, independent of map
// iteration order.
var order = []Name{Altitude, Speed, Heading, Emergency, Status, Track, Display, Pause, Resume, Clear, Help, Exit}

// HelpText renders the full command listing.
func HelpText() string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, n := range order {
		info := infos[n]
		b.WriteString("  ")
		b.WriteString(info.Syntax)
		b.WriteString(" - ")
		b.WriteString(info.Description)
		b.WriteString("\n")
	}
	return b.String()
}

// HelpFor renders detailed help for one command name (aliases
// accepted), or an error message if the name is not recognised.
func HelpFor(name string) string {
	n, ok := aliases[strings.ToUpper(name)]
	if !ok {
		return "Unknown command: " + name
	}
	info := infos[n]

	var b strings.Builder
	b.WriteString(info.Syntax)
	b.WriteString("\n")
	b.WriteString(info.Description)
	b.WriteString("\n")
	for _, ex := range info.Examples {
		b.WriteString("  e.g. ")
		b.WriteString(ex)
		b.WriteString("\n")
	}
	return b.String()
}
