// Package status queries the dictation and command daemons' filesystem
// state and renders it as the small JSON shape a Waybar-style status bar
// expects, closed over the four states: commands-on, dictation-typing,
// dictation-warm, and stopped.
package status

import "github.com/speechdesk/speechdesk/internal/statepaths"

// Report is the status bar JSON payload: a glyph, an alt identifier used
// for icon selection, a list of CSS-style state classes, and a
// human-readable tooltip.
type Report struct {
	Text    string   `json:"text"`
	Alt     string   `json:"alt"`
	Class   []string `json:"class"`
	Tooltip string   `json:"tooltip"`
}

const (
	dictationDaemon = "local-live-dictation"
	commandsDaemon  = "local-voice-commands"
	glyph           = "" // microphone
)

// Query inspects both daemons' PID and typing-flag files and returns the
// status bar payload for whichever mode is currently active.
func Query() Report {
	dictation := statepaths.New(dictationDaemon)
	commands := statepaths.New(commandsDaemon)

	dictationRunning := dictation.IsRunning()
	typing := dictationRunning && dictation.TypingEnabled()
	commandsRunning := commands.IsRunning()

	switch {
	case commandsRunning:
		return Report{
			Text:    glyph,
			Alt:     "commands",
			Class:   []string{"commands", "on"},
			Tooltip: "Voice command mode enabled\nR-Ctrl x2: start commands\nL-Ctrl x2: switch to dictation",
		}
	case typing:
		return Report{
			Text:    glyph,
			Alt:     "on",
			Class:   []string{"running", "typing", "on"},
			Tooltip: "Dictation typing enabled\nL-Ctrl x2: start dictation\nR-Ctrl x2: voice commands\nRight-click: stop daemon",
		}
	case dictationRunning:
		return Report{
			Text:    glyph,
			Alt:     "warm",
			Class:   []string{"running", "warm"},
			Tooltip: "Dictation model loaded (typing off)\nL-Ctrl x2: enable typing\nR-Ctrl x2: voice commands\nRight-click: stop daemon",
		}
	default:
		return Report{
			Text:    glyph,
			Alt:     "off",
			Class:   []string{"stopped", "off"},
			Tooltip: "Dictation daemon stopped\nMiddle-click: start daemon",
		}
	}
}
