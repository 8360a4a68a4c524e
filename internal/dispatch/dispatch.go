// Package dispatch executes window-manager and desktop actions on behalf
// of a recognized command: Hyprland dispatches and client queries via
// hyprctl, URL opening via xdg-open, zoom key-chords via ydotool, and
// arbitrary user-defined shell commands. Every external call is
// best-effort: a failure returns false/empty rather than propagating an
// error, matching the fire-and-forget execution model of the command
// recognizer that calls these.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	shortTimeout   = 5 * time.Second
	execTimeout    = 8 * time.Second
	ydotoolTimeout = 20 * time.Second
	customTimeout  = 600 * time.Second
)

// Client mirrors the subset of `hyprctl clients -j` fields commands need.
type Client struct {
	Address string `json:"address"`
	Class   string `json:"class"`
	Title   string `json:"title"`
	Workspace struct {
		Name string `json:"name"`
	} `json:"workspace"`
}

func runTimeout(ctx context.Context, d time.Duration, name string, args ...string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	err := cmd.Run()
	return out.String(), err == nil
}

// RunExec shells a raw command string through hyprctl's exec dispatcher.
func RunExec(commandText string) bool {
	_, ok := runTimeout(context.Background(), execTimeout, "hyprctl", "dispatch", "exec", commandText)
	return ok
}

// RunDispatch splits dispatchText shell-style and runs it as a hyprctl dispatch.
func RunDispatch(dispatchText string) bool {
	parts := splitShellWords(dispatchText)
	if len(parts) == 0 {
		return false
	}
	args := append([]string{"dispatch"}, parts...)
	_, ok := runTimeout(context.Background(), execTimeout, "hyprctl", args...)
	return ok
}

// splitShellWords is a minimal shlex.split: whitespace-separated tokens
// with support for single/double quoting, enough for dispatch strings
// like `movetoworkspace 3,address:0x...` or a quoted window title.
func splitShellWords(s string) []string {
	var out []string
	var cur strings.Builder
	var quote rune
	inWord := false
	flush := func() {
		if inWord {
			out = append(out, cur.String())
			cur.Reset()
			inWord = false
		}
	}
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	flush()
	return out
}

// RunYdotoolKeyEvents sends raw ydotool key codes (e.g. "29:1", "13:1").
func RunYdotoolKeyEvents(keyEvents []string, keyDelayMs int) bool {
	if len(keyEvents) == 0 {
		return false
	}
	args := append([]string{"key", "--key-delay", strconv.Itoa(keyDelayMs)}, keyEvents...)
	_, ok := runTimeout(context.Background(), ydotoolTimeout, "ydotool", args...)
	return ok
}

// ZoomFocusedWindow sends steps Ctrl+(=|-) chords to the focused window,
// pausing stepSleep between chords, aborting on the first failed chord.
func ZoomFocusedWindow(steps int, zoomIn bool, keyDelayMs int, stepSleep time.Duration) bool {
	if steps < 1 {
		steps = 1
	}
	keyCode := "12" // KEY_MINUS
	if zoomIn {
		keyCode = "13" // KEY_EQUAL
	}
	events := []string{"29:1", keyCode + ":1", keyCode + ":0", "29:0"} // Ctrl + (=|-)

	for i := 0; i < steps; i++ {
		if !RunYdotoolKeyEvents(events, keyDelayMs) {
			return false
		}
		if i+1 < steps && stepSleep > 0 {
			time.Sleep(stepSleep)
		}
	}
	return true
}

// LoadClients queries hyprctl for the current window list.
func LoadClients() []Client {
	out, ok := runTimeout(context.Background(), shortTimeout, "hyprctl", "clients", "-j")
	if !ok {
		return nil
	}
	var clients []Client
	if err := json.Unmarshal([]byte(out), &clients); err != nil {
		return nil
	}
	return clients
}

// ActiveWindowAddress returns the focused window's hyprctl address, or "".
func ActiveWindowAddress() string {
	out, ok := runTimeout(context.Background(), shortTimeout, "hyprctl", "activewindow", "-j")
	if !ok {
		return ""
	}
	var data struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		return ""
	}
	return strings.TrimSpace(data.Address)
}

// ActiveWorkspaceName returns the focused workspace's name, or "".
func ActiveWorkspaceName() string {
	out, ok := runTimeout(context.Background(), shortTimeout, "hyprctl", "activeworkspace", "-j")
	if !ok {
		return ""
	}
	var data struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		return ""
	}
	return strings.TrimSpace(data.Name)
}

// CloseWindowByAddress dispatches closewindow for a specific client.
func CloseWindowByAddress(address string) bool {
	if address == "" {
		return false
	}
	return RunDispatch("closewindow address:" + address)
}

// FocusWindowByAddress dispatches focuswindow for a specific client.
func FocusWindowByAddress(address string) bool {
	if address == "" {
		return false
	}
	return RunDispatch("focuswindow address:" + address)
}

// CloseActiveWindow dispatches killactive.
func CloseActiveWindow() bool {
	return RunDispatch("killactive")
}

// MoveWindowToWorkspace dispatches movetoworkspace(silent) for address.
func MoveWindowToWorkspace(address, workspaceTarget string, silent bool) bool {
	address = strings.TrimSpace(address)
	workspaceTarget = strings.TrimSpace(workspaceTarget)
	if address == "" || workspaceTarget == "" {
		return false
	}
	dispatcher := "movetoworkspace"
	if silent {
		dispatcher = "movetoworkspacesilent"
	}
	return RunDispatch(dispatcher + " " + workspaceTarget + ",address:" + address)
}

// MoveActiveWindowToWorkspace moves the focused window to workspaceTarget.
func MoveActiveWindowToWorkspace(workspaceTarget string, silent bool) bool {
	address := ActiveWindowAddress()
	if address == "" {
		return false
	}
	return MoveWindowToWorkspace(address, workspaceTarget, silent)
}

// AppMatch is the minimal match-rule shape dispatch needs from cmdconfig.App.
type AppMatch struct {
	ClassContains []string
	TitleContains []string
}

// MatchClient reports whether client belongs to the app described by match.
func MatchClient(client Client, match AppMatch) bool {
	cls := strings.ToLower(client.Class)
	title := strings.ToLower(client.Title)
	for _, token := range match.ClassContains {
		if token != "" && strings.Contains(cls, strings.ToLower(token)) {
			return true
		}
	}
	for _, token := range match.TitleContains {
		if token != "" && strings.Contains(title, strings.ToLower(token)) {
			return true
		}
	}
	return false
}

// MatchingClients returns all open windows matching the app's match rule.
func MatchingClients(match AppMatch) []Client {
	var out []Client
	for _, c := range LoadClients() {
		if MatchClient(c, match) {
			out = append(out, c)
		}
	}
	return out
}

// SelectPreferredClient prefers a client on the active workspace, else the
// first match in hyprctl's reported order.
func SelectPreferredClient(clients []Client) (Client, bool) {
	if len(clients) == 0 {
		return Client{}, false
	}
	if active := ActiveWorkspaceName(); active != "" {
		for _, c := range clients {
			if c.Workspace.Name == active {
				return c, true
			}
		}
	}
	return clients[0], true
}

// OpenApp launches launchCmd detached via the shell, falling back to
// hyprctl's exec dispatcher if the direct spawn fails.
func OpenApp(launchCmd string) bool {
	launchCmd = strings.TrimSpace(launchCmd)
	if launchCmd == "" {
		return false
	}
	cmd := exec.Command("bash", "-lc", launchCmd)
	if err := cmd.Start(); err == nil {
		return true
	}
	return RunExec(launchCmd)
}

// SearchWeb opens query in the default (or named) search engine's URL.
func SearchWeb(search Search, query string) bool {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return false
	}

	engine := search.DefaultEngine
	if engine == "" {
		engine = "duckduckgo"
	}
	template, ok := search.Engines[engine]
	if !ok || !strings.Contains(template, "{query}") {
		template = "https://duckduckgo.com/?q={query}"
	}

	target := strings.ReplaceAll(template, "{query}", url.QueryEscape(query))
	if err := exec.Command("xdg-open", target).Start(); err == nil {
		return true
	}
	return RunExec("xdg-open " + shellQuote(target))
}

// Search is the minimal search-engine configuration dispatch needs from
// cmdconfig.Search, kept separate so this package never imports cmdconfig
// (cmdconfig instead imports nothing from dispatch; intent wires the two).
type Search struct {
	DefaultEngine string
	Engines       map[string]string
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// CustomCommand is the minimal shape dispatch needs to run a
// user-defined command, independent of cmdconfig's JSON tags.
type CustomCommand struct {
	Dispatch   string
	Dispatches []string
	Exec       string
	Cwd        string
	Detached   bool
}

// ExecuteCustomCommand runs a user-defined command: dispatches (plural)
// first if present, a single dispatch next, else a shell exec (detached
// or waited, per Detached).
func ExecuteCustomCommand(entry CustomCommand) bool {
	if len(entry.Dispatches) > 0 {
		for _, d := range entry.Dispatches {
			d = strings.TrimSpace(d)
			if d == "" {
				continue
			}
			if !RunDispatch(d) {
				return false
			}
		}
		return true
	}

	if strings.TrimSpace(entry.Dispatch) != "" {
		return RunDispatch(strings.TrimSpace(entry.Dispatch))
	}

	execCmd := strings.TrimSpace(entry.Exec)
	if execCmd == "" {
		return false
	}

	var cwd string
	if strings.TrimSpace(entry.Cwd) != "" {
		cwd = expandPath(entry.Cwd)
	}

	if entry.Detached {
		cmd := exec.Command("bash", "-lc", execCmd)
		cmd.Dir = cwd
		return cmd.Start() == nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), customTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "bash", "-lc", execCmd)
	cmd.Dir = cwd
	return cmd.Run() == nil
}

func expandPath(p string) string {
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
