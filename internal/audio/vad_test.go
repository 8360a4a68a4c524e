package audio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/speechdesk/speechdesk/internal/audio"
)

func TestRMSOfSilenceIsZero(t *testing.T) {
	assert.Equal(t, 0.0, audio.RMS(make([]float32, 100)))
}

func TestRMSOfConstantSignal(t *testing.T) {
	samples := make([]float32, 10)
	for i := range samples {
		samples[i] = 0.5
	}
	assert.InDelta(t, 0.5, audio.RMS(samples), 1e-6)
}

func TestVoicedRatioAllVoiced(t *testing.T) {
	samples := make([]float32, 16000) // 1s at 16kHz
	for i := range samples {
		samples[i] = 0.1
	}
	assert.Equal(t, 1.0, audio.VoicedRatio(samples, 0.01, 30, 16000))
}

func TestVoicedRatioHalfVoiced(t *testing.T) {
	samples := make([]float32, 16000)
	for i := 8000; i < 16000; i++ {
		samples[i] = 0.1
	}
	ratio := audio.VoicedRatio(samples, 0.01, 30, 16000)
	assert.InDelta(t, 0.5, ratio, 0.05)
}

func TestContinuationBiasRelaxesWithinWindow(t *testing.T) {
	bias := audio.DefaultContinuationBias()
	rms, voiced := bias.EffectiveThresholds(0.001, 0.05, 0.2)
	assert.InDelta(t, 0.00055, rms, 1e-9)
	assert.InDelta(t, 0.0275, voiced, 1e-9)
}

func TestContinuationBiasExpiresAfterWindow(t *testing.T) {
	bias := audio.DefaultContinuationBias()
	rms, voiced := bias.EffectiveThresholds(0.001, 0.05, 5.0)
	assert.Equal(t, 0.001, rms)
	assert.Equal(t, 0.05, voiced)
}

func TestContinuationBiasNeverVoicedYet(t *testing.T) {
	bias := audio.DefaultContinuationBias()
	rms, voiced := bias.EffectiveThresholds(0.001, 0.05, -1)
	assert.Equal(t, 0.001, rms)
	assert.Equal(t, 0.05, voiced)
}
