// Package arbiter watches raw keyboard input for a clean double-tap of
// either Ctrl key and toggles one of the two mutually-exclusive speech
// modes: a left-ctrl double-tap arbitrates live dictation, a right-ctrl
// double-tap arbitrates voice commands. Exactly one mode may run typing
// at a time; starting one stops the other.
package arbiter

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gvalkov/golang-evdev"

	"github.com/speechdesk/speechdesk/internal/config"
	"github.com/speechdesk/speechdesk/internal/notify"
)

// Side identifies which control key a tap was detected on, and which
// mode it arbitrates: left starts/stops dictation, right starts/stops
// commands.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

// Config holds every timing constant governing tap detection and mode
// arbitration, individually overridable via SPEECHDESK_ARBITER_*
// environment variables.
type Config struct {
	RescanInterval             time.Duration
	MaxTapHold                 time.Duration
	TapDedupWindow             time.Duration
	DoubleTapWindow            time.Duration
	TriggerCooldown            time.Duration
	MinModeOnSecondsBeforeStop time.Duration
	DefaultModeDelay           time.Duration

	// DefaultMode is the mode bootstrapped shortly after startup if
	// neither daemon is already running: "dictation", "commands", or
	// "disabled" to skip bootstrapping entirely.
	DefaultMode string

	// DictationCmd/CommandsCmd are the executables invoked with
	// "start"/"daemon-stop" to drive each daemon and "status" to probe it,
	// resolved via exec.LookPath.
	DictationCmd string
	CommandsCmd  string

	Debug bool
}

func envSeconds(name string, def float64) time.Duration {
	return time.Duration(config.EnvFloat(name, def) * float64(time.Second))
}

// DefaultConfig mirrors the original double-tap daemon's constants,
// renamed under the SPEECHDESK_ARBITER_ prefix. The mutual-exclusion
// guard is retuned to 1.2s (spec.md's documented value) rather than the
// original's 3.00s; see DESIGN.md for the discrepancy.
func DefaultConfig() Config {
	return Config{
		RescanInterval:             envSeconds("SPEECHDESK_ARBITER_RESCAN_INTERVAL_SECONDS", 5.0),
		MaxTapHold:                 envSeconds("SPEECHDESK_ARBITER_MAX_TAP_HOLD_SECONDS", 0.30),
		TapDedupWindow:             envSeconds("SPEECHDESK_ARBITER_TAP_DEDUP_WINDOW_SECONDS", 0.07),
		DoubleTapWindow:            envSeconds("SPEECHDESK_ARBITER_DOUBLE_TAP_WINDOW_SECONDS", 0.45),
		TriggerCooldown:            envSeconds("SPEECHDESK_ARBITER_TRIGGER_COOLDOWN_SECONDS", 1.3),
		MinModeOnSecondsBeforeStop: envSeconds("SPEECHDESK_ARBITER_MIN_MODE_ON_SECONDS_BEFORE_STOP", 1.2),
		DefaultModeDelay:           envSeconds("SPEECHDESK_ARBITER_DEFAULT_MODE_DELAY_SECONDS", 0.8),

		DefaultMode: config.EnvString("SPEECHDESK_ARBITER_DEFAULT_MODE", "commands"),

		DictationCmd: config.EnvString("SPEECHDESK_DICTATION_CMD", "speechdesk-dictation"),
		CommandsCmd:  config.EnvString("SPEECHDESK_COMMANDS_CMD", "speechdesk-commands"),

		Debug: config.EnvBool("SPEECHDESK_ARBITER_DEBUG", true),
	}
}

// requiredCapabilities are the key codes a device must report to be
// considered keyboard-like; any device missing one is skipped, matching
// the original's required set exactly. RightCtrl is not gated on here —
// it's tracked as a trigger via sideForCode, but requiring it would drop
// any keyboard (compact/ergo/virtual layouts) that reports LeftCtrl
// without a distinct RightCtrl capability, losing the left-ctrl
// dictation toggle on those devices.
var requiredCapabilities = []int{
	evdev.KEY_LEFTCTRL,
	evdev.KEY_A,
	evdev.KEY_Z,
	evdev.KEY_SPACE,
}

func isKeyboardLike(dev *evdev.InputDevice) bool {
	name := strings.ToLower(dev.Name)
	if strings.Contains(name, "ydotool") {
		return false
	}

	var keyCaps []evdev.CapabilityCode
	for capType, codes := range dev.Capabilities {
		if capType.Type == evdev.EV_KEY {
			keyCaps = codes
			break
		}
	}
	if keyCaps == nil {
		return false
	}

	have := make(map[int]bool, len(keyCaps))
	for _, c := range keyCaps {
		have[c.Code] = true
	}
	for _, req := range requiredCapabilities {
		if !have[req] {
			return false
		}
	}
	return true
}

// sideTapState tracks one control key's held/released cycle on one
// device: idle until key-down (record start time), held until key-up
// (emit a tap candidate if no other key interrupted it and it was brief).
type sideTapState struct {
	isDown      bool
	downAt      time.Time
	sawOtherKey bool
}

type deviceState struct {
	path string
	dev  *evdev.InputDevice
	taps [2]sideTapState // indexed by Side
}

type rawEvent struct {
	devPath string
	ev      evdev.InputEvent
}

type deviceLost struct {
	devPath string
}

// Arbiter owns device discovery, the per-device tap state machines, the
// cross-device dedup/double-tap/cooldown timeline, and mode arbitration.
type Arbiter struct {
	cfg Config

	mu      sync.Mutex
	devices map[string]*deviceState

	lastRawTapTs  [2]time.Time
	lastTapUpTs   [2]time.Time
	lastTriggerTs [2]time.Time
	modeStartedTs [2]time.Time
}

// New constructs an Arbiter with no devices yet discovered; Run performs
// the first scan immediately.
func New(cfg Config) *Arbiter {
	return &Arbiter{cfg: cfg, devices: make(map[string]*deviceState)}
}

// Run discovers keyboard-like input devices, rescanning every
// RescanInterval, and drives the tap/double-tap/mode-arbitration state
// machine until ctx is canceled. It bootstraps the configured default
// mode after DefaultModeDelay if neither mode is already running.
func (a *Arbiter) Run(ctx context.Context) error {
	events := make(chan rawEvent, 64)
	lost := make(chan deviceLost, 8)

	rescan := time.NewTicker(a.cfg.RescanInterval)
	defer rescan.Stop()

	bootstrap := time.NewTimer(a.cfg.DefaultModeDelay)
	defer bootstrap.Stop()

	a.scanDevices(ctx, events, lost)
	log.Info("arbiter started")

	for {
		select {
		case <-ctx.Done():
			a.closeAllDevices()
			log.Info("arbiter stopped")
			return nil

		case <-rescan.C:
			a.scanDevices(ctx, events, lost)

		case <-bootstrap.C:
			a.bootstrapDefaultMode()

		case ev := <-events:
			a.handleEvent(ev)

		case l := <-lost:
			a.removeDevice(l.devPath)
		}
	}
}

func (a *Arbiter) scanDevices(ctx context.Context, events chan<- rawEvent, lost chan<- deviceLost) {
	found, err := evdev.ListInputDevices()
	if err != nil {
		log.Warn("arbiter: list input devices failed", "err", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, dev := range found {
		path := dev.Fn
		if _, known := a.devices[path]; known {
			continue
		}
		if !isKeyboardLike(dev) {
			continue
		}

		ds := &deviceState{path: path, dev: dev}
		a.devices[path] = ds
		log.Info("arbiter: monitoring device", "name", dev.Name, "path", path)
		go watchDevice(ctx, dev, path, events, lost)
	}
}

func watchDevice(ctx context.Context, dev *evdev.InputDevice, path string, events chan<- rawEvent, lost chan<- deviceLost) {
	for {
		evs, err := dev.Read()
		if err != nil {
			select {
			case lost <- deviceLost{devPath: path}:
			case <-ctx.Done():
			}
			return
		}
		for _, e := range evs {
			select {
			case events <- rawEvent{devPath: path, ev: e}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (a *Arbiter) removeDevice(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ds, ok := a.devices[path]
	if !ok {
		return
	}
	log.Info("arbiter: device removed", "name", ds.dev.Name, "path", path)
	delete(a.devices, path)
}

func (a *Arbiter) closeAllDevices() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for path := range a.devices {
		delete(a.devices, path)
	}
}

func (a *Arbiter) handleEvent(re rawEvent) {
	if re.ev.Type != evdev.EV_KEY {
		return
	}

	a.mu.Lock()
	ds, ok := a.devices[re.devPath]
	if !ok {
		a.mu.Unlock()
		return
	}

	code := int(re.ev.Code)
	value := re.ev.Value // 0=up, 1=down, 2=repeat

	side, isCtrl := sideForCode(code)

	now := time.Now()

	if isCtrl {
		state := &ds.taps[side]
		switch value {
		case 1:
			if !state.isDown {
				state.isDown = true
				state.downAt = now
				state.sawOtherKey = false
			}
		case 0:
			if !state.isDown {
				a.mu.Unlock()
				return
			}
			state.isDown = false
			held := 999 * time.Second
			if !state.downAt.IsZero() {
				held = now.Sub(state.downAt)
			}
			validTap := !state.sawOtherKey && held <= a.cfg.MaxTapHold
			state.downAt = time.Time{}
			state.sawOtherKey = false
			a.mu.Unlock()

			if validTap {
				a.observeTap(side, now)
			} else {
				a.mu.Lock()
				a.lastTapUpTs[side] = time.Time{}
				a.mu.Unlock()
			}
			return
		}
		a.mu.Unlock()
		return
	}

	if value == 1 {
		for s := range ds.taps {
			if ds.taps[s].isDown {
				ds.taps[s].sawOtherKey = true
			}
		}
		a.lastTapUpTs[SideLeft] = time.Time{}
		a.lastTapUpTs[SideRight] = time.Time{}
	}
	a.mu.Unlock()
}

func sideForCode(code int) (Side, bool) {
	switch code {
	case evdev.KEY_LEFTCTRL:
		return SideLeft, true
	case evdev.KEY_RIGHTCTRL:
		return SideRight, true
	default:
		return 0, false
	}
}

// observeTap applies global (cross-device) dedup and double-tap
// detection for one side's tap timeline, firing a mode toggle when a
// clean double-tap lands outside the trigger cooldown.
func (a *Arbiter) observeTap(side Side, now time.Time) {
	a.mu.Lock()

	if !a.lastRawTapTs[side].IsZero() && now.Sub(a.lastRawTapTs[side]) < a.cfg.TapDedupWindow {
		a.mu.Unlock()
		return
	}
	a.lastRawTapTs[side] = now

	fire := !a.lastTapUpTs[side].IsZero() &&
		now.Sub(a.lastTapUpTs[side]) <= a.cfg.DoubleTapWindow &&
		now.Sub(a.lastTriggerTs[side]) >= a.cfg.TriggerCooldown

	if fire {
		a.lastTapUpTs[side] = time.Time{}
		a.lastTriggerTs[side] = now
		a.mu.Unlock()
		a.toggleMode(side, now)
		return
	}

	a.lastTapUpTs[side] = now
	a.mu.Unlock()
}

// toggleMode enforces mutual exclusion exactly as fired: this side always
// stops the other side (best effort) then starts itself, never toggles
// itself off. If the other side was started less than
// MinModeOnSecondsBeforeStop ago, the stop is swallowed as "still
// starting" and the whole toggle is skipped, so a mis-fired double-tap
// can't fight a mode that's mid-bootstrap.
func (a *Arbiter) toggleMode(side Side, now time.Time) {
	other := otherSide(side)

	a.mu.Lock()
	otherStartedAt := a.modeStartedTs[other]
	a.mu.Unlock()

	if daemonRunning(a.cmdFor(other)) && !otherStartedAt.IsZero() && now.Sub(otherStartedAt) < a.cfg.MinModeOnSecondsBeforeStop {
		log.Info("arbiter: ignoring toggle, other mode still starting", "side", side)
		return
	}

	runDaemon(a.cmdFor(other), "stop")

	if ok := runDaemon(a.cmdFor(side), "start"); ok {
		a.mu.Lock()
		a.modeStartedTs[side] = now
		a.mu.Unlock()
		notify.Send(modeLabel(side)+" On", "")
		notify.PlayCue(true)
	} else {
		notify.Send(modeLabel(side)+" Start Failed", "See log")
	}
}

func otherSide(side Side) Side {
	if side == SideRight {
		return SideLeft
	}
	return SideRight
}

func (a *Arbiter) cmdFor(side Side) string {
	if side == SideLeft {
		return a.cfg.DictationCmd
	}
	return a.cfg.CommandsCmd
}

func modeLabel(side Side) string {
	if side == SideLeft {
		return "Dictation"
	}
	return "Commands"
}

// bootstrapDefaultMode starts the configured default mode once, shortly
// after arbiter startup, if neither daemon is already running.
func (a *Arbiter) bootstrapDefaultMode() {
	switch a.cfg.DefaultMode {
	case "dictation":
		if !daemonRunning(a.cfg.DictationCmd) && !daemonRunning(a.cfg.CommandsCmd) {
			if runDaemon(a.cfg.DictationCmd, "start") {
				a.mu.Lock()
				a.modeStartedTs[SideLeft] = time.Now()
				a.mu.Unlock()
			}
		}
	case "commands":
		if !daemonRunning(a.cfg.DictationCmd) && !daemonRunning(a.cfg.CommandsCmd) {
			if runDaemon(a.cfg.CommandsCmd, "start") {
				a.mu.Lock()
				a.modeStartedTs[SideRight] = time.Now()
				a.mu.Unlock()
			}
		}
	default:
		// "disabled" or unknown: no bootstrap.
	}
}

const daemonCmdTimeout = 15 * time.Second

// runDaemon invokes cmdName with the subcommand for the given logical
// action and reports whether the daemon confirmed success via one of
// spec.md's closed-set stdout tokens, mirroring the original's
// subprocess-result parsing. "stop" always maps to the daemon-stop
// subcommand (full process termination) rather than dictation's plain
// "stop" (which only pauses typing on a still-running daemon) — the
// arbiter's mutual-exclusion invariant requires the losing side's
// process to actually exit, not just go quiet.
func runDaemon(cmdName, action string) bool {
	path, err := exec.LookPath(cmdName)
	if err != nil {
		log.Warn("arbiter: command binary not found", "cmd", cmdName, "err", err)
		return false
	}

	subcommand := action
	if action == "stop" {
		subcommand = "daemon-stop"
	}

	ctx, cancel := context.WithTimeout(context.Background(), daemonCmdTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, subcommand).CombinedOutput()
	token := strings.TrimSpace(string(out))
	if err != nil {
		log.Warn("arbiter: daemon command failed", "cmd", cmdName, "action", subcommand, "err", err, "out", token)
		return false
	}

	switch action {
	case "start":
		return token == "started" || token == "already-running" || token == "typing-on"
	case "stop":
		return token == "stopped" || token == "daemon-stopped" || token == "already-off"
	default:
		return false
	}
}

// daemonRunning asks a daemon binary for its own status via its
// closed-set "status" subcommand rather than reading state files
// directly, keeping the arbiter decoupled from statepaths layout.
func daemonRunning(cmdName string) bool {
	path, err := exec.LookPath(cmdName)
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), daemonCmdTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "status").CombinedOutput()
	if err != nil {
		return false
	}
	token := strings.TrimSpace(string(out))
	return token == "typing-on" || token == "warm" || token == "running"
}
