// Package intent turns a short recognized utterance into a structured
// command and carries it out. Parsing is a pure pattern-table match
// (Parse); execution wires the parsed intent (or a pre-resolved custom
// command) into internal/dispatch and internal/notify. Keeping Parse pure
// lets the command recognizer (internal/command) use it for
// confirmation-repetition keying without any side effect.
package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/speechdesk/speechdesk/internal/cmdconfig"
	"github.com/speechdesk/speechdesk/internal/dispatch"
	"github.com/speechdesk/speechdesk/internal/notify"
)

// ZoomRepeatMax bounds how many zoom chords a single utterance can queue.
const ZoomRepeatMax = 30

// workspaceNumberWords maps spoken ordinals/cardinals to workspace digits.
var workspaceNumberWords = map[string]string{
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9", "ten": "10",
	"first": "1", "second": "2", "third": "3", "fourth": "4", "fifth": "5",
	"sixth": "6", "seventh": "7", "eighth": "8", "ninth": "9", "tenth": "10",
}

// repeatNumberWords maps spoken counts to integers for zoom/repeat commands.
var repeatNumberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "once": 1, "two": 2, "twice": 2, "three": 3,
	"thrice": 3, "four": 4, "five": 5, "six": 6, "seven": 7, "eight": 8,
	"nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17,
	"eighteen": 18, "nineteen": 19, "twenty": 20, "thirty": 30,
}

const payloadSep = "\t"

var (
	wsRunRE          = regexp.MustCompile(`\s+`)
	trailingPunctRE  = regexp.MustCompile(`[!?.,]+$`)
	leadingArticleRE = regexp.MustCompile(`^(the|a|an)\s+`)
	trailingPoliteRE = regexp.MustCompile(`\s+(please|now)$`)
	wsPrefixRE       = regexp.MustCompile(`^(?:workspace|desktop)\s+`)
	numPrefixRE      = regexp.MustCompile(`^(?:number|num)\s+`)
	workspaceIDRE    = regexp.MustCompile(`^[a-z0-9:+_-]+$`)
	tokenRE          = regexp.MustCompile(`[a-z0-9]+`)

	closeActivePatternRE = regexp.MustCompile(`^(?:close|quit|exit|stop|kill)(?:\s+(?:current|this|active))?(?:\s+(?:app|application|window))?$`)
	searchPatternRE1     = regexp.MustCompile(`^(?:search(?: web)?(?: for)?|find|look up|google)\s+(.+)$`)
	searchPatternRE2     = regexp.MustCompile(`^open (?:the )?(?:browser|web|internet)(?: and)? search(?: for)?\s+(.+)$`)
	zoomInRE             = regexp.MustCompile(`^(?:enhance|zoom in|increase zoom)(?:\s+(.+))?$`)
	zoomOutRE            = regexp.MustCompile(`^(?:zoom out|decrease zoom|reduce zoom|shrink)(?:\s+(.+))?$`)
	openRE               = regexp.MustCompile(`^(?:open|launch|start|run)\s+(.+)$`)
	focusRE              = regexp.MustCompile(`^(?:focus|activate)(?:\s+on)?\s+(.+)$`)
	showRE               = regexp.MustCompile(`^(?:show|bring|raise|switch to)\s+(.+)$`)
	moveRE               = regexp.MustCompile(`^(?:move|send)\s+(.+?)\s+to\s+(?:workspace|desktop)\s+(.+)$`)
	closeTargetRE        = regexp.MustCompile(`^(?:close|quit|exit|stop|kill)\s+(.+)$`)
)

var activeTargetAliases = map[string]bool{
	"window": true, "current window": true, "active window": true, "this window": true,
	"current": true, "active": true, "this": true, "app": true, "application": true,
	"current app": true, "active app": true, "this app": true,
}

var politePrefixes = []string{"please ", "can you ", "could you ", "would you ", "i want to ", "i'd like to "}

func collapseWS(s string) string {
	return strings.TrimSpace(wsRunRE.ReplaceAllString(s, " "))
}

func stripPolitePrefix(text string) string {
	s := collapseWS(strings.ToLower(text))
	changed := true
	for changed {
		changed = false
		for _, prefix := range politePrefixes {
			if strings.HasPrefix(s, prefix) {
				s = s[len(prefix):]
				changed = true
			}
		}
	}
	return strings.TrimSpace(s)
}

// NormalizeCommandText strips polite phrasing and trailing punctuation,
// lowercases, and collapses whitespace: the input Parse and custom-command
// resolution both key off.
func NormalizeCommandText(text string) string {
	s := stripPolitePrefix(text)
	s = trailingPunctRE.ReplaceAllString(s, "")
	return collapseWS(strings.ToLower(s))
}

func normalizeTarget(text string) string {
	s := collapseWS(strings.ToLower(text))
	s = leadingArticleRE.ReplaceAllString(s, "")
	s = trailingPoliteRE.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func normalizeWorkspaceTarget(text string) string {
	s := collapseWS(strings.ToLower(text))
	s = wsPrefixRE.ReplaceAllString(s, "")
	s = numPrefixRE.ReplaceAllString(s, "")
	s = trailingPoliteRE.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if digit, ok := workspaceNumberWords[s]; ok {
		return digit
	}
	if workspaceIDRE.MatchString(s) {
		return s
	}
	return ""
}

func encodePairPayload(left, right string) string {
	return left + payloadSep + right
}

func decodePairPayload(payload string) (string, string) {
	left, right, found := strings.Cut(payload, payloadSep)
	if !found {
		return "", ""
	}
	return strings.TrimSpace(left), strings.TrimSpace(right)
}

// extractRepeatFactors scans text for digit groups and number words,
// combining "twenty"/"thirty" with a following 1-9 word (e.g. "twenty two").
func extractRepeatFactors(text string) []int {
	tokens := tokenRE.FindAllString(strings.ToLower(text), -1)
	var factors []int
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		if n, err := strconv.Atoi(tok); err == nil {
			if n > 0 {
				factors = append(factors, n)
			}
			continue
		}

		if tok == "x" || tok == "times" || tok == "time" || tok == "by" {
			continue
		}

		if tok == "twenty" || tok == "thirty" {
			value := repeatNumberWords[tok]
			if i+1 < len(tokens) {
				if nxt, ok := repeatNumberWords[tokens[i+1]]; ok && nxt >= 1 && nxt <= 9 {
					value += nxt
					i++
				}
			}
			factors = append(factors, value)
			continue
		}

		if value, ok := repeatNumberWords[tok]; ok && value > 0 {
			factors = append(factors, value)
		}
	}
	return factors
}

// ParseRepeatCount multiplies together every repeat factor found in text,
// bounded to [1, ZoomRepeatMax]; an empty factor list falls back to
// defaultValue (also bounded).
func ParseRepeatCount(text string, defaultValue int) int {
	factors := extractRepeatFactors(text)
	if len(factors) == 0 {
		return clamp(defaultValue, 1, ZoomRepeatMax)
	}
	total := 1
	for _, f := range factors {
		total *= max1(f)
		if total >= ZoomRepeatMax {
			return ZoomRepeatMax
		}
	}
	return clamp(total, 1, ZoomRepeatMax)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

// Intent is a parsed command: a kind plus its associated payload
// (a target name, search query, workspace id, or encoded app/workspace
// pair, depending on Kind).
type Intent struct {
	Kind    string
	Payload string
}

// Key returns a stable identity for confirmation-repetition tracking:
// identical kind+payload across consecutive utterances count as repeats
// of the same candidate.
func (i Intent) Key() string {
	return i.Kind + ":" + collapseWS(strings.ToLower(i.Payload))
}

// Parse matches normalized text against the command pattern table,
// returning ok=false when nothing matches.
func Parse(text string) (Intent, bool) {
	s := NormalizeCommandText(text)
	if s == "" {
		return Intent{}, false
	}

	if closeActivePatternRE.MatchString(s) {
		return Intent{Kind: "close-active", Payload: "active-window"}, true
	}

	for _, re := range []*regexp.Regexp{searchPatternRE1, searchPatternRE2} {
		if m := re.FindStringSubmatch(s); m != nil {
			return Intent{Kind: "search", Payload: collapseWS(m[1])}, true
		}
	}

	if m := zoomInRE.FindStringSubmatch(s); m != nil {
		count := ParseRepeatCount(m[1], 1)
		return Intent{Kind: "zoom-in", Payload: strconv.Itoa(count)}, true
	}

	if m := zoomOutRE.FindStringSubmatch(s); m != nil {
		count := ParseRepeatCount(m[1], 1)
		return Intent{Kind: "zoom-out", Payload: strconv.Itoa(count)}, true
	}

	if m := openRE.FindStringSubmatch(s); m != nil {
		return Intent{Kind: "open", Payload: normalizeTarget(m[1])}, true
	}

	if m := focusRE.FindStringSubmatch(s); m != nil {
		return Intent{Kind: "focus", Payload: normalizeTarget(m[1])}, true
	}

	if m := showRE.FindStringSubmatch(s); m != nil {
		return Intent{Kind: "show", Payload: normalizeTarget(m[1])}, true
	}

	if m := moveRE.FindStringSubmatch(s); m != nil {
		appTarget := normalizeTarget(m[1])
		workspaceTarget := normalizeWorkspaceTarget(m[2])
		if workspaceTarget == "" {
			return Intent{}, false
		}
		if activeTargetAliases[appTarget] {
			return Intent{Kind: "move-active-workspace", Payload: workspaceTarget}, true
		}
		return Intent{Kind: "move-app-workspace", Payload: encodePairPayload(appTarget, workspaceTarget)}, true
	}

	if m := closeTargetRE.FindStringSubmatch(s); m != nil {
		target := normalizeTarget(m[1])
		if activeTargetAliases[target] || target == "app" || target == "application" || target == "window" {
			return Intent{Kind: "close-active", Payload: target}, true
		}
		return Intent{Kind: "close", Payload: target}, true
	}

	return Intent{}, false
}

func appAliases(app cmdconfig.App) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = normalizeTarget(s)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(app.ID)
	for _, a := range app.Aliases {
		add(a)
	}
	return out
}

// ResolveApp finds the app whose aliases exactly or substring-match
// target, exact match first.
func ResolveApp(cfg cmdconfig.Config, target string) (cmdconfig.App, bool) {
	target = normalizeTarget(target)
	for _, app := range cfg.Apps {
		for _, alias := range appAliases(app) {
			if target == alias {
				return app, true
			}
		}
	}
	for _, app := range cfg.Apps {
		for _, alias := range appAliases(app) {
			if target == alias || strings.Contains(target, alias) || strings.Contains(alias, target) {
				return app, true
			}
		}
	}
	return cmdconfig.App{}, false
}

var runPrefixes = []string{"run ", "execute ", "start "}

func customAliases(entry cmdconfig.Command) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = NormalizeCommandText(s)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(entry.ID)
	for _, a := range entry.Aliases {
		add(a)
	}
	return out
}

// ResolveCustomCommand matches normalizedText (already passed through
// NormalizeCommandText) against user-defined command aliases, also trying
// the text with a leading "run"/"execute"/"start" stripped.
func ResolveCustomCommand(cfg cmdconfig.Config, normalizedText string) (cmdconfig.Command, bool) {
	candidates := []string{normalizedText}
	for _, prefix := range runPrefixes {
		if strings.HasPrefix(normalizedText, prefix) {
			candidates = append(candidates, strings.TrimSpace(normalizedText[len(prefix):]))
		}
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		for _, entry := range cfg.Commands {
			for _, alias := range customAliases(entry) {
				if candidate == alias {
					return entry, true
				}
			}
		}
	}
	return cmdconfig.Command{}, false
}

func toAppMatch(m cmdconfig.Match) dispatch.AppMatch {
	return dispatch.AppMatch{ClassContains: m.ClassContains, TitleContains: m.TitleContains}
}

func toCustomCommand(c cmdconfig.Command) dispatch.CustomCommand {
	return dispatch.CustomCommand{
		Dispatch:   c.Dispatch,
		Dispatches: c.Dispatches,
		Exec:       c.Exec,
		Cwd:        c.Cwd,
		Detached:   c.DetachedOrDefault(),
	}
}

func showApp(app cmdconfig.App) bool {
	clients := dispatch.MatchingClients(toAppMatch(app.Match))
	if client, ok := dispatch.SelectPreferredClient(clients); ok {
		if dispatch.FocusWindowByAddress(client.Address) {
			return true
		}
	}
	return dispatch.OpenApp(app.Launch)
}

func focusApp(app cmdconfig.App) bool {
	clients := dispatch.MatchingClients(toAppMatch(app.Match))
	client, ok := dispatch.SelectPreferredClient(clients)
	if !ok {
		return false
	}
	return dispatch.FocusWindowByAddress(client.Address)
}

func moveAppToWorkspace(app cmdconfig.App, workspaceTarget string, silent bool) bool {
	clients := dispatch.MatchingClients(toAppMatch(app.Match))
	client, ok := dispatch.SelectPreferredClient(clients)
	if !ok {
		return false
	}
	return dispatch.MoveWindowToWorkspace(client.Address, workspaceTarget, silent)
}

func closeApp(app cmdconfig.App) bool {
	for _, client := range dispatch.LoadClients() {
		if dispatch.MatchClient(client, toAppMatch(app.Match)) {
			if dispatch.CloseWindowByAddress(client.Address) {
				return true
			}
		}
	}
	if strings.TrimSpace(app.Close) != "" {
		return dispatch.RunExec(strings.TrimSpace(app.Close))
	}
	return false
}

// ExecuteCustom runs a pre-resolved custom command and notifies the result.
func ExecuteCustom(entry cmdconfig.Command) bool {
	ok := dispatch.ExecuteCustomCommand(toCustomCommand(entry))
	label := entry.Notify
	if label == "" {
		label = entry.ID
	}
	status := "failed"
	if ok {
		status = "ok"
	}
	notify.Send("Run Command", fmt.Sprintf("%s: %s", label, status))
	return ok
}

// ZoomOptions configures the ydotool key-chord cadence used by the
// zoom-in/zoom-out intents; callers normally pass the recognizer's own
// SPEECHDESK_VCMD_ZOOM_* values (see internal/command.Config).
type ZoomOptions struct {
	KeyDelayMs  int
	StepSleepMs int
	RepeatMax   int
}

// DefaultZoomOptions matches the original implementation's constants.
func DefaultZoomOptions() ZoomOptions {
	return ZoomOptions{KeyDelayMs: 14, StepSleepMs: 40, RepeatMax: ZoomRepeatMax}
}

// Execute carries out a parsed intent against cfg, notifying the result.
func Execute(i Intent, cfg cmdconfig.Config, zoom ZoomOptions) bool {
	switch i.Kind {
	case "search":
		ok := dispatch.SearchWeb(dispatch.Search{DefaultEngine: cfg.Search.DefaultEngine, Engines: cfg.Search.Engines}, i.Payload)
		notify.Send("Search", pick(ok, i.Payload, "failed: "+i.Payload))
		return ok

	case "zoom-in", "zoom-out":
		count := ParseRepeatCount(i.Payload, 1)
		if repeatMax := zoom.RepeatMax; repeatMax > 0 && count > repeatMax {
			count = repeatMax
		}
		ok := dispatch.ZoomFocusedWindow(count, i.Kind == "zoom-in", zoom.KeyDelayMs, time.Duration(zoom.StepSleepMs)*time.Millisecond)
		label := "Enhance"
		if i.Kind == "zoom-out" {
			label = "Zoom Out"
		}
		notify.Send(label, fmt.Sprintf("x%d: %s", count, pick(ok, "ok", "failed")))
		return ok

	case "close-active":
		ok := dispatch.CloseActiveWindow()
		notify.Send("Close Active Window", pick(ok, "ok", "failed"))
		return ok

	case "move-active-workspace":
		ok := dispatch.MoveActiveWindowToWorkspace(i.Payload, true)
		notify.Send("Move Active Window", fmt.Sprintf("workspace %s: %s", i.Payload, pick(ok, "ok", "failed")))
		return ok

	case "move-app-workspace":
		appTarget, workspaceTarget := decodePairPayload(i.Payload)
		if appTarget == "" || workspaceTarget == "" {
			notify.Send("Move App", "invalid command payload")
			return false
		}
		app, ok := ResolveApp(cfg, appTarget)
		if !ok {
			notify.Send("Unknown app", appTarget)
			return false
		}
		moved := moveAppToWorkspace(app, workspaceTarget, true)
		notify.Send("Move App", fmt.Sprintf("%s -> workspace %s: %s", app.ID, workspaceTarget, pick(moved, "ok", "failed")))
		return moved
	}

	app, ok := ResolveApp(cfg, i.Payload)
	if !ok {
		notify.Send("Unknown app", i.Payload)
		return false
	}

	switch i.Kind {
	case "open":
		ok := dispatch.OpenApp(app.Launch)
		notify.Send("Open App", fmt.Sprintf("%s: %s", app.ID, pick(ok, "ok", "failed")))
		return ok
	case "show":
		ok := showApp(app)
		notify.Send("Show App", fmt.Sprintf("%s: %s", app.ID, pick(ok, "ok", "failed")))
		return ok
	case "focus":
		ok := focusApp(app)
		notify.Send("Focus App", fmt.Sprintf("%s: %s", app.ID, pick(ok, "ok", "failed")))
		return ok
	case "close":
		ok := closeApp(app)
		notify.Send("Close App", fmt.Sprintf("%s: %s", app.ID, pick(ok, "ok", "failed")))
		return ok
	}
	return false
}

func pick(cond bool, whenTrue, whenFalse string) string {
	if cond {
		return whenTrue
	}
	return whenFalse
}
