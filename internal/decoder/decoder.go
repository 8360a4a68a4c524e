// Package decoder implements the streaming dictation core: a fixed-step
// tick loop that re-decodes a sliding audio window, reconciles the new
// hypothesis against the previous one via tail-overlap/common-prefix
// detection, resolves short tail revisions against already-typed text,
// and commits newly-stable words through the keystroke emitter.
package decoder

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/speechdesk/speechdesk/internal/asrmodel"
	"github.com/speechdesk/speechdesk/internal/audio"
	"github.com/speechdesk/speechdesk/internal/audioring"
	"github.com/speechdesk/speechdesk/internal/config"
	"github.com/speechdesk/speechdesk/internal/keystroke"
	"github.com/speechdesk/speechdesk/internal/statepaths"
	"github.com/speechdesk/speechdesk/internal/textnorm"
)

// Config holds every timing and threshold constant governing the
// dictation decoder, each overridable by its own environment variable so
// operators can retune behavior without a rebuild.
type Config struct {
	StepSeconds      float64
	WindowSeconds    float64
	MaxBufferSeconds float64

	RMSThreshold    float64
	VoicedFrameMs   int
	MinVoicedRatio  float64
	Continuation    audio.ContinuationBias

	KeyDelayMs int

	PunctuationStyle           keystroke.PunctuationStyle
	ShortSentenceTerminalWords int

	StablePrefixGuardWords     int
	EmitHistoryWords           int
	MinEmitWords               int
	TailRevisionMaxWords       int
	TailRevisionMinAnchorWords int
	SilenceFlushGuardWords     int
	ExitFlushGuardWords        int

	SilenceResetSeconds     float64
	AutoStopSilenceSeconds  float64
	ExitFlushMaxIdleSeconds float64

	Debug bool
}

// DefaultConfig mirrors the original implementation's environment
// variable defaults, renamed under the SPEECHDESK_DICT_ prefix. Tests can
// override individual variables with t.Setenv before calling this.
func DefaultConfig() Config {
	cont := audio.DefaultContinuationBias()
	cont.RMSFactor = config.EnvFloat("SPEECHDESK_DICT_RMS_CONTINUATION_FACTOR", cont.RMSFactor)
	cont.VoicedFactor = config.EnvFloat("SPEECHDESK_DICT_VOICED_CONTINUATION_FACTOR", cont.VoicedFactor)
	cont.ContinuationSecs = config.EnvFloat("SPEECHDESK_DICT_VOICE_CONTINUATION_SECONDS", cont.ContinuationSecs)

	return Config{
		StepSeconds:      config.EnvFloat("SPEECHDESK_DICT_STEP_SECONDS", 0.6),
		WindowSeconds:    config.EnvFloat("SPEECHDESK_DICT_WINDOW_SECONDS", 4.0),
		MaxBufferSeconds: config.EnvFloat("SPEECHDESK_DICT_MAX_BUFFER_SECONDS", 8.0),

		RMSThreshold:   config.EnvFloat("SPEECHDESK_DICT_RMS_THRESHOLD", 0.00035),
		VoicedFrameMs:  config.EnvInt("SPEECHDESK_DICT_VOICED_FRAME_MS", 30),
		MinVoicedRatio: config.EnvFloat("SPEECHDESK_DICT_MIN_VOICED_RATIO", 0.05),
		Continuation:   cont,

		KeyDelayMs: config.EnvInt("SPEECHDESK_DICT_KEY_DELAY_MS", 2),

		PunctuationStyle:           keystroke.PunctuationStyle(config.EnvString("SPEECHDESK_DICT_PUNCTUATION_STYLE", "adaptive")),
		ShortSentenceTerminalWords: config.EnvInt("SPEECHDESK_DICT_SHORT_SENTENCE_TERMINAL_WORDS", 6),

		StablePrefixGuardWords:     config.EnvInt("SPEECHDESK_DICT_STABLE_PREFIX_GUARD_WORDS", 1),
		EmitHistoryWords:           config.EnvInt("SPEECHDESK_DICT_EMIT_HISTORY_WORDS", 72),
		MinEmitWords:               config.EnvInt("SPEECHDESK_DICT_MIN_EMIT_WORDS", 1),
		TailRevisionMaxWords:       config.EnvInt("SPEECHDESK_DICT_TAIL_REVISION_MAX_WORDS", 3),
		TailRevisionMinAnchorWords: config.EnvInt("SPEECHDESK_DICT_TAIL_REVISION_MIN_ANCHOR_WORDS", 2),
		SilenceFlushGuardWords:     config.EnvInt("SPEECHDESK_DICT_SILENCE_FLUSH_GUARD_WORDS", 0),
		ExitFlushGuardWords:        config.EnvInt("SPEECHDESK_DICT_EXIT_FLUSH_GUARD_WORDS", 0),

		SilenceResetSeconds:     config.EnvFloat("SPEECHDESK_DICT_SILENCE_RESET_SECONDS", 1.2),
		AutoStopSilenceSeconds:  config.EnvFloat("SPEECHDESK_DICT_AUTO_STOP_SILENCE_SECONDS", 12.0),
		ExitFlushMaxIdleSeconds: config.EnvFloat("SPEECHDESK_DICT_EXIT_FLUSH_MAX_IDLE_SECONDS", 2.5),

		Debug: config.EnvBool("SPEECHDESK_DICT_DEBUG", true),
	}
}

// ResolveTailUpdate decides how many trailing words of history to retract
// and which new words to append, by finding the delete count in
// [0, maxReviseWords] that maximizes tail-overlap between the trimmed
// history and candidate, subject to a minimum anchor overlap. It mirrors
// the original's incremental best-overlap search exactly, including the
// "a positive delete must still yield something new" guard.
func ResolveTailUpdate(history, candidate []string, maxReviseWords, minAnchorWords int) (deleteWords int, newWords []string) {
	if len(candidate) == 0 {
		return 0, nil
	}

	bestOverlap := textnorm.TailOverlapWords(history, candidate, 64)
	bestDelete := 0

	maxDelete := maxReviseWords
	if maxDelete < 0 {
		maxDelete = 0
	}
	if maxDelete > len(history) {
		maxDelete = len(history)
	}

	minAnchor := minAnchorWords
	if minAnchor < 1 {
		minAnchor = 1
	}

	for deleteN := 1; deleteN <= maxDelete; deleteN++ {
		trimmed := history[:len(history)-deleteN]
		overlap := textnorm.TailOverlapWords(trimmed, candidate, 64)
		if overlap <= bestOverlap {
			continue
		}
		if overlap < minAnchor {
			continue
		}
		bestOverlap = overlap
		bestDelete = deleteN
	}

	if bestOverlap >= len(candidate) {
		return 0, nil
	}

	remaining := candidate[bestOverlap:]
	if bestDelete > 0 && len(remaining) == 0 {
		return 0, nil
	}
	return bestDelete, remaining
}

// Session tracks the decoder's emitted-word history and drives commits
// through the keystroke emitter, independent of the audio/tick machinery
// so the commit logic can be exercised directly in tests.
type Session struct {
	cfg          Config
	emitter      *keystroke.Emitter
	emittedWords []string
}

// NewSession constructs a Session bound to the given emitter.
func NewSession(cfg Config, emitter *keystroke.Emitter) *Session {
	return &Session{cfg: cfg, emitter: emitter}
}

// EmittedWords returns the current emitted-word history, most recent last.
func (s *Session) EmittedWords() []string { return s.emittedWords }

func (s *Session) pushEmitted(words []string) {
	s.emittedWords = append(s.emittedWords, words...)
	max := s.cfg.EmitHistoryWords
	if max < 8 {
		max = 8
	}
	if len(s.emittedWords) > max {
		s.emittedWords = s.emittedWords[len(s.emittedWords)-max:]
	}
}

// CommitStableWords guards the candidate by guardWords (words held back
// because the tail of a hypothesis is the least reliable part), resolves
// any tail revision against already-emitted history, retracts what needs
// retracting, and types whatever is left, unless it's empty, too short,
// or a closed-set hallucination marker.
func (s *Session) CommitStableWords(stableCandidate []string, guardWords int) {
	guard := guardWords
	if guard < 0 {
		guard = 0
	}
	candidate := stableCandidate
	if guard > 0 {
		if len(candidate) > guard {
			candidate = candidate[:len(candidate)-guard]
		} else {
			candidate = nil
		}
	}
	if len(candidate) == 0 {
		return
	}

	deleteWords, newWords := ResolveTailUpdate(s.emittedWords, candidate, s.cfg.TailRevisionMaxWords, s.cfg.TailRevisionMinAnchorWords)

	if deleteWords > 0 {
		removed := s.emitter.DeleteLastWords(deleteWords)
		if removed > 0 && removed <= len(s.emittedWords) {
			s.emittedWords = s.emittedWords[:len(s.emittedWords)-removed]
		}
		if s.cfg.Debug {
			log.Printf("dictation: revise removed_words=%d", removed)
		}
	}

	minEmit := s.cfg.MinEmitWords
	if minEmit < 1 {
		minEmit = 1
	}
	if len(newWords) < minEmit {
		return
	}

	emitText := textnorm.CollapseWhitespace(strings.Join(newWords, " "))
	if emitText == "" || textnorm.IsHallucination(emitText) || textnorm.CountWordLikeTokens(emitText) == 0 {
		return
	}

	s.emitter.Type(emitText, s.cfg.PunctuationStyle, s.cfg.ShortSentenceTerminalWords)
	s.pushEmitted(newWords)
}

// Decoder owns the sliding audio buffer, the ASR model, and the tick
// loop that drives a Session.
type Decoder struct {
	cfg              Config
	model            *asrmodel.Model
	session          *Session
	buffer           *audioring.Buffer
	deviceSampleRate int
	modelSampleRate  int
	paths            *statepaths.Dir

	prevHypWords []string
	lastVoiceTs  time.Time
	loopStartTs  time.Time
}

// New constructs a Decoder. deviceSampleRate is the capture device's
// native rate; windows are resampled to modelSampleRate at transcribe
// time, never on the capture path.
func New(cfg Config, model *asrmodel.Model, buffer *audioring.Buffer, deviceSampleRate, modelSampleRate int, paths *statepaths.Dir) *Decoder {
	emitter := keystroke.NewEmitter(cfg.KeyDelayMs)
	emitter.Debug = cfg.Debug
	return &Decoder{
		cfg:              cfg,
		model:            model,
		session:          NewSession(cfg, emitter),
		buffer:           buffer,
		deviceSampleRate: deviceSampleRate,
		modelSampleRate:  modelSampleRate,
		paths:            paths,
	}
}

// Run drives the tick loop until ctx is canceled or the stop file
// appears, mirroring the original's typing-enabled gating, silence
// flush, auto-stop, and exit-flush behavior.
func (d *Decoder) Run(ctx context.Context) error {
	windowSamples := int(d.cfg.WindowSeconds * float64(d.deviceSampleRate))

	d.loopStartTs = time.Now()
	typingEnabled := d.paths.TypingEnabled()
	var lastProcess time.Time

	ticker := time.NewTicker(30 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.exitFlush()
			return nil
		case <-ticker.C:
		}

		if d.paths.StopRequested() {
			d.exitFlush()
			return nil
		}

		now := time.Now()
		nextTypingEnabled := d.paths.TypingEnabled()
		if nextTypingEnabled != typingEnabled {
			if typingEnabled && !nextTypingEnabled {
				d.flushPending("typing-off", d.cfg.ExitFlushGuardWords, windowSamples)
			}
			typingEnabled = nextTypingEnabled
			d.prevHypWords = nil
			d.loopStartTs = now
			d.lastVoiceTs = time.Time{}
			lastProcess = time.Time{}
			d.buffer.Clear()
		}

		if !typingEnabled {
			continue
		}

		if !lastProcess.IsZero() && now.Sub(lastProcess).Seconds() < d.cfg.StepSeconds {
			continue
		}
		lastProcess = now

		d.tick(now, windowSamples, &typingEnabled)
	}
}

func (d *Decoder) tick(now time.Time, windowSamples int, typingEnabled *bool) {
	raw := d.buffer.Snapshot(windowSamples)
	if len(raw) == 0 {
		return
	}

	rms := audio.RMS(raw)
	voicedRatio := audio.VoicedRatio(raw, d.cfg.RMSThreshold, d.cfg.VoicedFrameMs, d.deviceSampleRate)

	secsSinceVoice := -1.0
	if !d.lastVoiceTs.IsZero() {
		secsSinceVoice = now.Sub(d.lastVoiceTs).Seconds()
	}
	rmsThreshold, voicedThreshold := d.cfg.Continuation.EffectiveThresholds(d.cfg.RMSThreshold, d.cfg.MinVoicedRatio, secsSinceVoice)

	if rms < rmsThreshold || voicedRatio < voicedThreshold {
		var silenceFor float64
		if !d.lastVoiceTs.IsZero() {
			silenceFor = now.Sub(d.lastVoiceTs).Seconds()
		} else {
			silenceFor = now.Sub(d.loopStartTs).Seconds()
		}

		if !d.lastVoiceTs.IsZero() && silenceFor >= d.cfg.SilenceResetSeconds {
			d.flushPending("silence", d.cfg.SilenceFlushGuardWords, windowSamples)
		}

		if d.cfg.AutoStopSilenceSeconds > 0 && silenceFor >= d.cfg.AutoStopSilenceSeconds {
			log.Printf("dictation: auto-disable typing after %.1fs of inactivity", silenceFor)
			d.paths.SetTypingEnabled(false)
			*typingEnabled = false
			d.prevHypWords = nil
			d.loopStartTs = now
			d.lastVoiceTs = time.Time{}
			d.buffer.Clear()
		}
		return
	}

	text := d.decodeText(raw)
	if text == "" {
		return
	}
	d.lastVoiceTs = now

	words := strings.Fields(text)
	if len(words) == 0 {
		return
	}

	if len(d.prevHypWords) == 0 {
		d.prevHypWords = words
		return
	}

	overlap := textnorm.TailOverlapWords(d.prevHypWords, words, 64)
	if overlap <= 0 {
		overlap = textnorm.CommonPrefixLen(d.prevHypWords, words)
	}
	if overlap > 0 {
		d.session.CommitStableWords(words[:overlap], d.cfg.StablePrefixGuardWords)
	}
	d.prevHypWords = words
}

// decodeText resamples a raw-rate window to the model's native rate and
// transcribes it, discarding hallucination-marker output.
func (d *Decoder) decodeText(raw []float32) string {
	resampled := audio.ResamplePolyphase(raw, d.deviceSampleRate, d.modelSampleRate)
	if len(resampled) == 0 {
		return ""
	}
	text := d.model.Transcribe(resampled)
	text = textnorm.CollapseWhitespace(text)
	if text == "" || textnorm.IsHallucination(text) {
		return ""
	}
	return text
}

// flushPending commits whatever hypothesis is pending, then (if the
// buffer still holds voiced audio) does one more fresh decode-and-commit
// pass on the current window. This matches the original's two-step
// flush: first drain prev_hyp_words through the normal commit path, then
// separately re-check and commit a fresh decode of the live buffer.
func (d *Decoder) flushPending(reason string, guardWords, windowSamples int) {
	if len(d.prevHypWords) > 0 {
		d.session.CommitStableWords(d.prevHypWords, guardWords)
		d.prevHypWords = nil
	}

	raw := d.buffer.Snapshot(windowSamples)
	if len(raw) == 0 {
		return
	}

	rms := audio.RMS(raw)
	voicedRatio := audio.VoicedRatio(raw, d.cfg.RMSThreshold, d.cfg.VoicedFrameMs, d.deviceSampleRate)
	if rms < d.cfg.RMSThreshold || voicedRatio < d.cfg.MinVoicedRatio {
		return
	}

	text := d.decodeText(raw)
	if text == "" {
		return
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return
	}
	d.session.CommitStableWords(words, guardWords)
	if d.cfg.Debug {
		log.Printf("dictation: flush[%s]: %s", reason, text)
	}
}

// exitFlush commits any pending hypothesis on clean shutdown, but only if
// the decoder went quiet recently enough that the flush is unlikely to
// dump a stale hypothesis.
func (d *Decoder) exitFlush() {
	now := time.Now()
	var idle float64
	if !d.lastVoiceTs.IsZero() {
		idle = now.Sub(d.lastVoiceTs).Seconds()
	} else {
		idle = now.Sub(d.loopStartTs).Seconds()
	}
	maxIdle := d.cfg.ExitFlushMaxIdleSeconds
	if maxIdle < 0 {
		maxIdle = 0
	}
	if idle <= maxIdle {
		d.flushPending("exit", d.cfg.ExitFlushGuardWords, int(d.cfg.WindowSeconds*float64(d.deviceSampleRate)))
	}
	d.paths.SetTypingEnabled(false)
}
