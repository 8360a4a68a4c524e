package arbiter

import (
	"testing"

	"github.com/gvalkov/golang-evdev"
	"github.com/stretchr/testify/assert"
)

func keyboardCapabilities(codes ...int) map[evdev.CapabilityType][]evdev.CapabilityCode {
	caps := make([]evdev.CapabilityCode, 0, len(codes))
	for _, c := range codes {
		caps = append(caps, evdev.CapabilityCode{Code: c})
	}
	return map[evdev.CapabilityType][]evdev.CapabilityCode{
		{Type: evdev.EV_KEY}: caps,
	}
}

func TestIsKeyboardLikeRequiresFullKeySet(t *testing.T) {
	dev := &evdev.InputDevice{
		Name: "Generic USB Keyboard",
		Capabilities: keyboardCapabilities(
			evdev.KEY_LEFTCTRL, evdev.KEY_RIGHTCTRL, evdev.KEY_A, evdev.KEY_Z, evdev.KEY_SPACE,
		),
	}
	assert.True(t, isKeyboardLike(dev))
}

func TestIsKeyboardLikeRejectsPartialCapabilities(t *testing.T) {
	dev := &evdev.InputDevice{
		Name:         "Media Remote",
		Capabilities: keyboardCapabilities(evdev.KEY_A, evdev.KEY_SPACE),
	}
	assert.False(t, isKeyboardLike(dev))
}

func TestIsKeyboardLikeRejectsInjectorDevice(t *testing.T) {
	dev := &evdev.InputDevice{
		Name: "ydotool virtual device",
		Capabilities: keyboardCapabilities(
			evdev.KEY_LEFTCTRL, evdev.KEY_RIGHTCTRL, evdev.KEY_A, evdev.KEY_Z, evdev.KEY_SPACE,
		),
	}
	assert.False(t, isKeyboardLike(dev))
}

func TestSideForCodeIdentifiesBothCtrlKeys(t *testing.T) {
	side, ok := sideForCode(evdev.KEY_LEFTCTRL)
	assert.True(t, ok)
	assert.Equal(t, SideLeft, side)

	side, ok = sideForCode(evdev.KEY_RIGHTCTRL)
	assert.True(t, ok)
	assert.Equal(t, SideRight, side)
}

func TestSideForCodeRejectsOtherKeys(t *testing.T) {
	_, ok := sideForCode(evdev.KEY_A)
	assert.False(t, ok)
}

func TestModeLabelMapsSidesToModes(t *testing.T) {
	assert.Equal(t, "Dictation", modeLabel(SideLeft))
	assert.Equal(t, "Commands", modeLabel(SideRight))
}
