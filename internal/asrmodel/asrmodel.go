// Package asrmodel wraps the offline whisper-family speech model behind a
// small adapter shared by the dictation decoder and the command
// recognizer, so the sliding-window decoder core stays engine-agnostic.
//
// Unlike the teacher's internal/stt.Recognizer, this adapter does not run
// sherpa's own streaming VAD: both daemons gate on their own RMS/voiced-ratio
// window check (internal/audio) and hand the whole window to the model one
// shot at a time, matching the external-collaborator contract in spec.md §1
// ("consumes mono PCM at 16 kHz, returns segmented text") and the original
// Python implementation's direct model.transcribe(window) call.
package asrmodel

import (
	"fmt"
	"strings"
	"sync"

	"github.com/speechdesk/speechdesk/internal/sherpa"
)

// Config configures the offline recognizer.
type Config struct {
	Encoder    string
	Decoder    string
	Tokens     string
	SampleRate int
	Language   string // "auto" disables language pinning
	Provider   string
	NumThreads int
	Verbose    bool
}

// Model decodes independent audio windows with no cross-window context,
// matching spec.md §4.2 "each window stands alone".
type Model struct {
	mu         sync.Mutex
	recognizer *sherpa.OfflineRecognizer
	sampleRate int
}

// New constructs the offline recognizer from the given model files.
func New(cfg Config) (*Model, error) {
	rc := &sherpa.OfflineRecognizerConfig{}
	rc.ModelConfig.Whisper.Encoder = cfg.Encoder
	rc.ModelConfig.Whisper.Decoder = cfg.Decoder
	language := cfg.Language
	if strings.EqualFold(language, "auto") {
		language = ""
	}
	rc.ModelConfig.Whisper.Language = language
	rc.ModelConfig.Whisper.Task = "transcribe"
	rc.ModelConfig.Whisper.TailPaddings = -1
	rc.ModelConfig.Tokens = cfg.Tokens
	rc.ModelConfig.NumThreads = cfg.NumThreads
	rc.ModelConfig.Provider = cfg.Provider
	rc.DecodingMethod = "greedy_search"
	if cfg.Verbose {
		rc.ModelConfig.Debug = 1
	}

	recognizer := sherpa.NewOfflineRecognizer(rc)
	if recognizer == nil {
		return nil, fmt.Errorf("asrmodel: failed to create offline recognizer")
	}

	return &Model{recognizer: recognizer, sampleRate: cfg.SampleRate}, nil
}

// Transcribe decodes one independent window of 16 kHz mono float32 samples.
// Each call opens its own stream so invocations never share decoder
// context, per spec.md §4.2's "context disabled" requirement.
func (m *Model) Transcribe(samples []float32) string {
	if len(samples) == 0 {
		return ""
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stream := sherpa.NewOfflineStream(m.recognizer)
	if stream == nil {
		return ""
	}
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(m.sampleRate, samples)
	m.recognizer.Decode(stream)

	return strings.TrimSpace(stream.GetResult().Text)
}

// Close releases the recognizer.
func (m *Model) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(m.recognizer)
		m.recognizer = nil
	}
}
