package audio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/speechdesk/speechdesk/internal/audio"
)

func TestFindByFuzzyNameSubstringMatch(t *testing.T) {
	devices := []audio.Device{
		{Index: 0, Name: "HDA Intel PCH: ALC256 Analog (hw:0,0)"},
		{Index: 1, Name: "Blue Yeti Mono"},
	}
	dev, ok := audio.FindByFuzzyName(devices, "blue yeti")
	assert.True(t, ok)
	assert.Equal(t, 1, dev.Index)
}

func TestFindByFuzzyNameTokenOverlap(t *testing.T) {
	devices := []audio.Device{
		{Index: 0, Name: "Generic USB Audio Device Mono"},
		{Index: 1, Name: "HDMI Output"},
	}
	dev, ok := audio.FindByFuzzyName(devices, "alsa_input.usb-Generic_USB_Audio-00.mono-fallback")
	assert.True(t, ok)
	assert.Equal(t, 0, dev.Index)
}

func TestFindByFuzzyNameNoMatch(t *testing.T) {
	devices := []audio.Device{{Index: 0, Name: "HDMI Output"}}
	_, ok := audio.FindByFuzzyName(devices, "nonexistent capture widget")
	assert.False(t, ok)
}

func TestPickDevicePrefersOverride(t *testing.T) {
	devices := []audio.Device{
		{Index: 0, Name: "default"},
		{Index: 1, Name: "Blue Yeti"},
	}
	dev, ok := audio.PickDevice(devices, "blue yeti", "", 0)
	assert.True(t, ok)
	assert.Equal(t, 1, dev.Index)
}

func TestPickDeviceSkipsGenericDefault(t *testing.T) {
	devices := []audio.Device{
		{Index: 0, Name: "default"},
		{Index: 1, Name: "Built-in Microphone"},
	}
	dev, ok := audio.PickDevice(devices, "", "", 0)
	assert.True(t, ok)
	assert.Equal(t, 1, dev.Index)
}

func TestPickDeviceFallsBackToFirstAvailable(t *testing.T) {
	devices := []audio.Device{{Index: 0, Name: "default"}}
	dev, ok := audio.PickDevice(devices, "", "", -1)
	assert.True(t, ok)
	assert.Equal(t, 0, dev.Index)
}
