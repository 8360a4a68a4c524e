package audio

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

var (
	deviceNonAlnumRE = regexp.MustCompile(`[^a-z0-9]+`)
	deviceSpaceRE    = regexp.MustCompile(`\s+`)
)

// filler tokens excluded from fuzzy device-name token matching: generic
// plumbing words that appear in most device names and carry no
// discriminating signal.
var fuzzyFillerTokens = map[string]bool{
	"alsa": true, "input": true, "output": true, "usb": true, "pci": true,
	"mono": true, "stereo": true, "fallback": true, "analog": true,
	"digital": true, "hw": true,
}

var genericInputNames = map[string]bool{
	"default": true, "pipewire": true, "pulse": true, "jack": true,
}

// Device describes one capture-capable input device as reported by the
// audio backend.
type Device struct {
	Index int
	Name  string
}

// NormalizeDeviceText lowercases a device name and collapses everything
// that isn't alphanumeric into single spaces.
func NormalizeDeviceText(s string) string {
	lowered := strings.ToLower(s)
	collapsed := deviceNonAlnumRE.ReplaceAllString(lowered, " ")
	return strings.TrimSpace(deviceSpaceRE.ReplaceAllString(collapsed, " "))
}

func isGenericInputName(name string) bool {
	return genericInputNames[NormalizeDeviceText(name)]
}

// FindByFuzzyName looks for a device whose normalized name contains, or is
// contained by, wanted; failing that it scores devices by normalized
// token overlap with wanted (excluding filler tokens), with a +0.5 bonus
// when both sides mention "mono". The chosen match must clear a minimum
// score of max(1, min(2, len(wantedTokens))).
func FindByFuzzyName(devices []Device, wanted string) (Device, bool) {
	wantedNorm := NormalizeDeviceText(wanted)
	if wantedNorm == "" {
		return Device{}, false
	}

	var wantedTokens []string
	for _, tok := range strings.Fields(wantedNorm) {
		if !fuzzyFillerTokens[tok] {
			wantedTokens = append(wantedTokens, tok)
		}
	}
	wantsMono := strings.Contains(wantedNorm, "mono")

	for _, dev := range devices {
		devNorm := NormalizeDeviceText(dev.Name)
		if strings.Contains(wantedNorm, devNorm) || strings.Contains(devNorm, wantedNorm) {
			return dev, true
		}
	}

	if len(wantedTokens) == 0 {
		return Device{}, false
	}

	bestIdx := -1
	bestScore := -1.0
	for i, dev := range devices {
		devNorm := NormalizeDeviceText(dev.Name)
		devTokenSet := map[string]bool{}
		for _, tok := range strings.Fields(devNorm) {
			devTokenSet[tok] = true
		}
		score := 0.0
		for _, tok := range wantedTokens {
			if devTokenSet[tok] {
				score++
			}
		}
		if wantsMono && devTokenSet["mono"] {
			score += 0.5
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	threshold := len(wantedTokens)
	if threshold > 2 {
		threshold = 2
	}
	if threshold < 1 {
		threshold = 1
	}
	if bestIdx >= 0 && bestScore >= float64(threshold) {
		return devices[bestIdx], true
	}
	return Device{}, false
}

// PactlDefaultSourceName shells out to `pactl get-default-source` to learn
// PipeWire/PulseAudio's active default input, with a short timeout so a
// hung audio server never blocks startup.
func PactlDefaultSourceName() string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "pactl", "get-default-source").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// PickDevice chooses an input device following the priority chain: an
// explicit override name always wins; then the system's default source
// name; then a configured name; then the backend's own default device if
// it isn't a generic passthrough wrapper; then the first non-generic,
// non-monitor input; then the backend default regardless; then simply the
// first available device. defaultIndex < 0 means the backend reported no
// default.
func PickDevice(devices []Device, overrideName, configuredName string, defaultIndex int) (Device, bool) {
	if overrideName != "" {
		if dev, ok := FindByFuzzyName(devices, overrideName); ok {
			return dev, true
		}
	}

	if pactlName := PactlDefaultSourceName(); pactlName != "" {
		if dev, ok := FindByFuzzyName(devices, pactlName); ok {
			return dev, true
		}
	}

	if configuredName != "" {
		if dev, ok := FindByFuzzyName(devices, configuredName); ok {
			return dev, true
		}
	}

	if defaultIndex >= 0 && defaultIndex < len(devices) {
		dev := devices[defaultIndex]
		if !isGenericInputName(dev.Name) {
			return dev, true
		}
	}

	for _, dev := range devices {
		norm := NormalizeDeviceText(dev.Name)
		if isGenericInputName(dev.Name) || strings.Contains(norm, "monitor") {
			continue
		}
		return dev, true
	}

	if defaultIndex >= 0 && defaultIndex < len(devices) {
		return devices[defaultIndex], true
	}

	if len(devices) > 0 {
		return devices[0], true
	}
	return Device{}, false
}
