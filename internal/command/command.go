// Package command implements the voice-command recognizer: a short-lived
// phrase accumulator that transcribes a sliding audio window, attempts to
// execute a recognized command as soon as it is confirmed stable, and
// falls back to a padded, fully re-decoded finalize pass once the speaker
// goes silent. This mirrors the two-tier design of the dictation decoder
// (internal/decoder) but commits on confirmation-repetition + cooldown
// rather than on stable-prefix growth, since commands are short
// imperatives rather than open-ended continuous speech.
package command

import (
	"context"
	"strings"
	"time"

	"github.com/speechdesk/speechdesk/internal/asrmodel"
	"github.com/speechdesk/speechdesk/internal/audio"
	"github.com/speechdesk/speechdesk/internal/audioring"
	"github.com/speechdesk/speechdesk/internal/cmdconfig"
	"github.com/speechdesk/speechdesk/internal/config"
	"github.com/speechdesk/speechdesk/internal/intent"
	"github.com/speechdesk/speechdesk/internal/statepaths"
	"github.com/speechdesk/speechdesk/internal/textnorm"
)

// Config holds every timing/threshold constant for the command
// recognizer, individually overridable via SPEECHDESK_VCMD_* environment
// variables (mirroring decoder.Config's SPEECHDESK_DICT_* convention).
type Config struct {
	StepSeconds      float64
	WindowSeconds    float64
	MaxBufferSeconds float64

	RMSThreshold    float64
	VoicedFrameMs   int
	MinVoicedRatio  float64

	SilenceCommitSeconds float64
	FinalPadSeconds      float64
	MinFinalAnchorWords  int

	CommandConfirmRepetitions int
	CommandCooldownSeconds    float64

	ZoomKeyDelayMs  int
	ZoomStepSleepMs int
	ZoomRepeatMax   int

	Debug bool
}

// DefaultConfig returns the recognizer's defaults, reading
// SPEECHDESK_VCMD_* overrides via internal/config's env helpers.
func DefaultConfig() Config {
	return Config{
		StepSeconds:      config.EnvFloat("SPEECHDESK_VCMD_STEP_SECONDS", 0.45),
		WindowSeconds:    config.EnvFloat("SPEECHDESK_VCMD_WINDOW_SECONDS", 3.4),
		MaxBufferSeconds: config.EnvFloat("SPEECHDESK_VCMD_MAX_BUFFER_SECONDS", 8.0),

		RMSThreshold:   config.EnvFloat("SPEECHDESK_VCMD_RMS_THRESHOLD", 0.00035),
		VoicedFrameMs:  config.EnvInt("SPEECHDESK_VCMD_VOICED_FRAME_MS", 30),
		MinVoicedRatio: config.EnvFloat("SPEECHDESK_VCMD_MIN_VOICED_RATIO", 0.05),

		SilenceCommitSeconds: config.EnvFloat("SPEECHDESK_VCMD_SILENCE_COMMIT_SECONDS", 0.85),
		FinalPadSeconds:      config.EnvFloat("SPEECHDESK_VCMD_FINAL_PAD_SECONDS", 0.80),
		MinFinalAnchorWords:  config.EnvInt("SPEECHDESK_VCMD_MIN_FINAL_ANCHOR_WORDS", 2),

		CommandConfirmRepetitions: config.EnvInt("SPEECHDESK_VCMD_COMMAND_CONFIRM_REPETITIONS", 1),
		CommandCooldownSeconds:    config.EnvFloat("SPEECHDESK_VCMD_COMMAND_COOLDOWN_SECONDS", 1.5),

		ZoomKeyDelayMs:  config.EnvInt("SPEECHDESK_VCMD_ZOOM_KEY_DELAY_MS", 14),
		ZoomStepSleepMs: config.EnvInt("SPEECHDESK_VCMD_ZOOM_STEP_SLEEP_MS", 40),
		ZoomRepeatMax:   config.EnvInt("SPEECHDESK_VCMD_ZOOM_REPEAT_MAX", 30),

		Debug: config.EnvBool("SPEECHDESK_VCMD_DEBUG", true),
	}
}

// ChooseFinalText reconciles the live-accumulated pending text against a
// fresh, padded re-decode of the same window at finalize time: when the
// two are near-identical (common prefix covers all but one trailing word)
// the longer wins; otherwise the fresh decode is trusted only if it tail-
// overlaps the pending text by at least minAnchorWords, else pending
// stands.
func ChooseFinalText(pendingText, decodedText string, minAnchorWords int) string {
	pendingText = textnorm.CollapseWhitespace(pendingText)
	decodedText = textnorm.CollapseWhitespace(decodedText)
	if pendingText == "" {
		return decodedText
	}
	if decodedText == "" {
		return pendingText
	}

	pendingWords := strings.Fields(pendingText)
	decodedWords := strings.Fields(decodedText)

	prefix := textnorm.CommonPrefixLen(pendingWords, decodedWords)
	shorter := len(pendingWords)
	if len(decodedWords) < shorter {
		shorter = len(decodedWords)
	}
	nearIdentical := shorter - 1
	if nearIdentical < 1 {
		nearIdentical = 1
	}
	if prefix >= nearIdentical {
		if len(decodedWords) >= len(pendingWords) {
			return decodedText
		}
		return pendingText
	}

	overlap := textnorm.TailOverlapWords(pendingWords, decodedWords, 64)
	anchor := minAnchorWords
	if anchor < 1 {
		anchor = 1
	}
	if overlap >= anchor {
		return decodedText
	}
	return pendingText
}

// Executor carries out a resolved custom command or parsed intent.
// Separated from Recognizer so tests can substitute a recording stub.
type Executor interface {
	ExecuteCustom(cmdconfig.Command) bool
	ExecuteIntent(intent.Intent) bool
}

type defaultExecutor struct {
	cfg  cmdconfig.Config
	zoom intent.ZoomOptions
}

func (e defaultExecutor) ExecuteCustom(c cmdconfig.Command) bool { return intent.ExecuteCustom(c) }
func (e defaultExecutor) ExecuteIntent(i intent.Intent) bool {
	return intent.Execute(i, e.cfg, e.zoom)
}

// Session tracks one recognizer's accumulated phrase and confirmation
// state between ticks; it holds no audio, only text/time bookkeeping, so
// it's independently testable from the audio pipeline.
type Session struct {
	cfg      Config
	cmdCfg   cmdconfig.Config
	executor Executor

	phraseText     string
	phraseStarted  time.Time
	lastVoice      time.Time
	candidateKey   string
	candidateReps  int
	lastExecute    time.Time
}

// NewSession constructs a recognizer session bound to cmdCfg's app/command/search catalog.
func NewSession(cfg Config, cmdCfg cmdconfig.Config) *Session {
	zoom := intent.ZoomOptions{KeyDelayMs: cfg.ZoomKeyDelayMs, StepSleepMs: cfg.ZoomStepSleepMs, RepeatMax: cfg.ZoomRepeatMax}
	return NewSessionWithExecutor(cfg, cmdCfg, defaultExecutor{cfg: cmdCfg, zoom: zoom})
}

// NewSessionWithExecutor constructs a Session with a caller-supplied
// Executor, letting tests substitute a recording stub for the real
// dispatch/notify side effects.
func NewSessionWithExecutor(cfg Config, cmdCfg cmdconfig.Config, executor Executor) *Session {
	return &Session{cfg: cfg, cmdCfg: cmdCfg, executor: executor}
}

// PhraseText returns the current pending phrase, for tests/inspection.
func (s *Session) PhraseText() string { return s.phraseText }

// ObserveUtterance records a freshly transcribed window as the current
// pending phrase and attempts the live fast-path execution. Returns true
// if a command was executed.
func (s *Session) ObserveUtterance(text string, now time.Time) bool {
	if text == "" {
		return false
	}
	s.phraseText = text
	if s.phraseStarted.IsZero() {
		s.phraseStarted = now
	}
	s.lastVoice = now
	return s.tryExecuteLive(text, now)
}

func (s *Session) resetPhrase() {
	s.phraseText = ""
	s.phraseStarted = time.Time{}
	s.lastVoice = time.Time{}
}

func (s *Session) resetCandidate() {
	s.candidateKey = ""
	s.candidateReps = 0
}

// tryExecuteLive resolves text to a custom command or parsed intent,
// tracks confirmation-repetition and cooldown, and executes once both
// gates clear.
func (s *Session) tryExecuteLive(text string, now time.Time) bool {
	normalized := intent.NormalizeCommandText(text)

	if custom, ok := intent.ResolveCustomCommand(s.cmdCfg, normalized); ok {
		return s.confirmAndRun("custom:"+custom.ID, now, func() bool {
			return s.executor.ExecuteCustom(custom)
		})
	}

	parsed, ok := intent.Parse(text)
	if !ok {
		s.resetCandidate()
		return false
	}

	return s.confirmAndRun(parsed.Key(), now, func() bool {
		return s.executor.ExecuteIntent(parsed)
	})
}

func (s *Session) confirmAndRun(key string, now time.Time, run func() bool) bool {
	if key == s.candidateKey {
		s.candidateReps++
	} else {
		s.candidateKey = key
		s.candidateReps = 1
	}

	minReps := s.cfg.CommandConfirmRepetitions
	if minReps < 1 {
		minReps = 1
	}
	if s.candidateReps < minReps {
		return false
	}

	cooldown := s.cfg.CommandCooldownSeconds
	if cooldown < 0 {
		cooldown = 0
	}
	if !s.lastExecute.IsZero() && now.Sub(s.lastExecute) < time.Duration(cooldown*float64(time.Second)) {
		return false
	}

	ok := run()
	s.lastExecute = now
	s.resetCandidate()
	s.resetPhrase()
	return ok
}

// Finalize is called once the speaker has been silent for
// SilenceCommitSeconds, with the text the Recognizer decoded from a
// fresh, padded window: it reconciles that text against the pending
// phrase via ChooseFinalText, and executes the
// result through the same custom-command-then-intent path as
// tryExecuteLive. Always clears phrase/candidate state on return.
func (s *Session) Finalize(decodedFreshText string) bool {
	pending := textnorm.CollapseWhitespace(s.phraseText)
	defer func() {
		s.resetPhrase()
		s.resetCandidate()
	}()

	if pending == "" {
		return false
	}

	finalText := ChooseFinalText(pending, decodedFreshText, s.cfg.MinFinalAnchorWords)

	normalized := intent.NormalizeCommandText(finalText)
	if custom, ok := intent.ResolveCustomCommand(s.cmdCfg, normalized); ok {
		return s.executor.ExecuteCustom(custom)
	}

	parsed, ok := intent.Parse(finalText)
	if !ok {
		return false
	}
	return s.executor.ExecuteIntent(parsed)
}

// Recognizer owns the audio substrate (ring buffer + model) and drives
// the tick loop; Session owns the phrase/confirmation state machine atop
// it, matching the decoder/Decoder split in internal/decoder.
type Recognizer struct {
	cfg     Config
	model   *asrmodel.Model
	session *Session

	buffer           *audioring.Buffer
	deviceSampleRate int
	modelSampleRate  int
	paths            *statepaths.Dir
}

// New constructs a command Recognizer.
func New(cfg Config, cmdCfg cmdconfig.Config, model *asrmodel.Model, buffer *audioring.Buffer, deviceSampleRate, modelSampleRate int, paths *statepaths.Dir) *Recognizer {
	return &Recognizer{
		cfg:              cfg,
		model:            model,
		session:          NewSession(cfg, cmdCfg),
		buffer:           buffer,
		deviceSampleRate: deviceSampleRate,
		modelSampleRate:  modelSampleRate,
		paths:            paths,
	}
}

// Run polls the ring buffer every 30ms, stepping the recognizer's tick
// logic once per StepSeconds, until ctx is cancelled or the stop sentinel
// appears; while the typing-enable flag is cleared the loop idles without
// decoding (mirroring the dictation decoder's gating in
// internal/decoder.Decoder.Run).
func (r *Recognizer) Run(ctx context.Context) error {
	ticker := time.NewTicker(30 * time.Millisecond)
	defer ticker.Stop()

	var lastStep time.Time
	windowSamples := int(r.cfg.WindowSeconds * float64(r.deviceSampleRate))
	listening := r.paths.TypingEnabled()

	for {
		select {
		case <-ctx.Done():
			if r.session.PhraseText() != "" {
				r.finalizeNow()
			}
			return ctx.Err()
		case now := <-ticker.C:
			if r.paths.StopRequested() {
				if r.session.PhraseText() != "" {
					r.finalizeNow()
				}
				return nil
			}

			nextListening := r.paths.TypingEnabled()
			if nextListening != listening {
				listening = nextListening
				r.buffer.Clear()
				lastStep = time.Time{}
			}
			if !listening {
				continue
			}

			if !lastStep.IsZero() && now.Sub(lastStep) < time.Duration(r.cfg.StepSeconds*float64(time.Second)) {
				continue
			}
			lastStep = now
			r.tick(now, windowSamples)
		}
	}
}

func (r *Recognizer) tick(now time.Time, windowSamples int) {
	raw := r.buffer.Snapshot(windowSamples)
	if len(raw) == 0 {
		return
	}

	rms := audio.RMS(raw)
	voicedRatio := audio.VoicedRatio(raw, r.cfg.RMSThreshold, r.cfg.VoicedFrameMs, r.deviceSampleRate)
	voiced := rms >= r.cfg.RMSThreshold && voicedRatio >= r.cfg.MinVoicedRatio

	if voiced {
		text := r.decodeText(raw, 0)
		if text != "" {
			r.session.ObserveUtterance(text, now)
		}
		return
	}

	if r.session.PhraseText() != "" && !r.session.lastVoice.IsZero() && now.Sub(r.session.lastVoice) >= time.Duration(r.cfg.SilenceCommitSeconds*float64(time.Second)) {
		r.finalizeNow()
	}
}

func (r *Recognizer) finalizeNow() {
	windowSamples := int(r.cfg.WindowSeconds * float64(r.deviceSampleRate))
	padSamples := int(r.cfg.FinalPadSeconds * float64(r.deviceSampleRate))
	raw := audioring.Window(r.buffer, windowSamples, padSamples)
	decoded := ""
	if len(raw) > 0 {
		decoded = r.decodeText(raw, 0)
	}
	r.session.Finalize(decoded)
	r.buffer.Clear()
}

func (r *Recognizer) decodeText(raw []float32, padSamples int) string {
	if padSamples > 0 {
		padded := make([]float32, len(raw)+padSamples)
		copy(padded, raw)
		raw = padded
	}
	resampled := audio.ResamplePolyphase(raw, r.deviceSampleRate, r.modelSampleRate)
	if len(resampled) == 0 {
		return ""
	}
	text := textnorm.CollapseWhitespace(r.model.Transcribe(resampled))
	if text == "" || textnorm.IsHallucination(text) {
		return ""
	}
	return text
}
