// Package evalharness replays a recorded audio file through the same
// stable-prefix/tail-revision decision logic the live dictation decoder
// uses, without any real audio capture or keystroke emission, so the
// decoder's tuning constants can be evaluated offline against a
// reference transcript.
package evalharness

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/speechdesk/speechdesk/internal/asrmodel"
	"github.com/speechdesk/speechdesk/internal/audio"
	"github.com/speechdesk/speechdesk/internal/decoder"
	"github.com/speechdesk/speechdesk/internal/textnorm"
)

// DecodeAudioFile decodes an input recording to mono 32-bit float PCM at
// sampleRate. WAV files are decoded directly (and resampled in-process
// if needed); anything else falls back to an ffmpeg subprocess, the
// same decode path the original evaluation script always used.
func DecodeAudioFile(ctx context.Context, path string, sampleRate int) ([]float32, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		samples, err := decodeWAVFile(path, sampleRate)
		if err == nil {
			return samples, nil
		}
		// fall through to ffmpeg for WAV variants the decoder rejects
		// (float PCM, unusual channel layouts, etc).
	}
	return decodeViaFFmpeg(ctx, path, sampleRate)
}

// decodeWAVFile reads a PCM WAV file with go-audio/wav, downmixes to
// mono, normalizes to [-1, 1], and resamples to sampleRate if the file's
// native rate differs.
func decodeWAVFile(path string, sampleRate int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	samples := downmixToFloat32(buf)
	if len(samples) == 0 {
		return nil, fmt.Errorf("decoded wav is empty")
	}

	nativeRate := buf.Format.SampleRate
	if nativeRate > 0 && nativeRate != sampleRate {
		samples = audio.ResamplePolyphase(samples, nativeRate, sampleRate)
	}
	return samples, nil
}

// downmixToFloat32 averages all channels of an IntBuffer into a single
// mono float32 stream normalized by the buffer's source bit depth.
func downmixToFloat32(buf *goaudio.IntBuffer) []float32 {
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	maxVal := float64(int64(1) << uint(buf.SourceBitDepth-1))
	if maxVal <= 0 {
		maxVal = 32768
	}

	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		out[i] = float32((sum / float64(channels)) / maxVal)
	}
	return out
}

func decodeViaFFmpeg(ctx context.Context, path string, sampleRate int) ([]float32, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-i", path,
		"-ac", "1",
		"-ar", fmt.Sprint(sampleRate),
		"-f", "f32le", "-",
	)
	raw, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w", err)
	}
	if len(raw)%4 != 0 {
		raw = raw[:len(raw)-len(raw)%4]
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		bits := uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
		samples[i] = math.Float32frombits(bits)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("decoded audio is empty")
	}
	return samples, nil
}

// WordErrorRate computes word error rate via a Levenshtein edit distance
// over normalized word tokens, mirroring the original evaluation
// script's edit-distance table exactly (insertions, deletions, and
// substitutions cost 1 each).
func WordErrorRate(reference, hypothesis string) (wer float64, refWords, hypWords, edits int) {
	ref := normalizedWords(reference)
	hyp := normalizedWords(hypothesis)

	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0, 0, 0, 0
		}
		return 1, 0, len(hyp), 0
	}

	rows, cols := len(ref)+1, len(hyp)+1
	dp := make([][]int, rows)
	for i := range dp {
		dp[i] = make([]int, cols)
		dp[i][0] = i
	}
	for j := 0; j < cols; j++ {
		dp[0][j] = j
	}
	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			cost := 1
			if ref[i-1] == hyp[j-1] {
				cost = 0
			}
			dp[i][j] = min3(dp[i-1][j]+1, dp[i][j-1]+1, dp[i-1][j-1]+cost)
		}
	}

	edits = dp[rows-1][cols-1]
	return float64(edits) / float64(len(ref)), len(ref), len(hyp), edits
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func normalizedWords(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if w := textnorm.NormalizeWord(f); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Result is the outcome of a simulated realtime pass: the text that
// would have been typed, and (when verbose) a line-by-line trace of
// every heard/emit/revise event.
type Result struct {
	Text  string
	Trace []string
}

// SimulateRealtime replays samples in fixed steps of cfg.StepSeconds
// over a sliding window of cfg.WindowSeconds, applying the same
// voice-activity gate, stable-prefix detection, and tail-revision
// resolution the live decoder's tick loop applies, and returns the text
// that would have been committed.
func SimulateRealtime(ctx context.Context, model *asrmodel.Model, samples []float32, sampleRate int, cfg decoder.Config, verbose bool) (Result, error) {
	stepSamples := maxInt(1, int(cfg.StepSeconds*float64(sampleRate)))
	windowSamples := maxInt(stepSamples, int(cfg.WindowSeconds*float64(sampleRate)))

	var prevHypWords []string
	var emitted []string
	var out []string
	var trace []string

	emitHistoryCap := cfg.EmitHistoryWords
	if emitHistoryCap < 8 {
		emitHistoryCap = 8
	}
	pushEmitted := func(words []string) {
		emitted = append(emitted, words...)
		if len(emitted) > emitHistoryCap {
			emitted = emitted[len(emitted)-emitHistoryCap:]
		}
	}

	commit := func(candidate []string, guardWords int, now float64, label string) {
		guard := maxInt(0, guardWords)
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

		deleteWords, newWords := decoder.ResolveTailUpdate(emitted, candidate, cfg.TailRevisionMaxWords, cfg.TailRevisionMinAnchorWords)
		if deleteWords > 0 {
			deleteWords = minInt(deleteWords, len(out), len(emitted))
			if deleteWords > 0 {
				out = out[:len(out)-deleteWords]
				emitted = emitted[:len(emitted)-deleteWords]
				if verbose {
					trace = append(trace, fmt.Sprintf("t=%5.2fs revise: delete %d words", now, deleteWords))
				}
			}
		}

		minEmit := maxInt(1, cfg.MinEmitWords)
		if len(newWords) < minEmit {
			return
		}
		pushEmitted(newWords)
		out = append(out, newWords...)
		if verbose {
			trace = append(trace, fmt.Sprintf("t=%5.2fs %s: %s", now, label, strings.Join(newWords, " ")))
		}
	}

	lastVoiceTs := -1.0
	end := stepSamples
	for end <= len(samples) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		start := maxInt(0, end-windowSamples)
		clip := samples[start:end]
		now := float64(end) / float64(sampleRate)

		rms := audio.RMS(clip)
		voicedRatio := audio.VoicedRatio(clip, cfg.RMSThreshold, cfg.VoicedFrameMs, sampleRate)
		secsSinceVoice := -1.0
		if lastVoiceTs > 0 {
			secsSinceVoice = now - lastVoiceTs
		}
		rmsThreshold, voicedThreshold := cfg.Continuation.EffectiveThresholds(cfg.RMSThreshold, cfg.MinVoicedRatio, secsSinceVoice)

		if rms < rmsThreshold || voicedRatio < voicedThreshold {
			if lastVoiceTs > 0 && now-lastVoiceTs >= cfg.SilenceResetSeconds && len(prevHypWords) > 0 {
				commit(prevHypWords, cfg.SilenceFlushGuardWords, now, "emit")
				prevHypWords = nil
			}
			end += stepSamples
			continue
		}
		lastVoiceTs = now

		text := transcribeClip(model, clip)
		if text == "" {
			end += stepSamples
			continue
		}
		words := strings.Fields(text)
		if verbose {
			trace = append(trace, fmt.Sprintf("t=%5.2fs heard: %s", now, text))
		}

		if len(prevHypWords) == 0 {
			prevHypWords = words
			end += stepSamples
			continue
		}

		overlap := textnorm.TailOverlapWords(prevHypWords, words, 64)
		if overlap <= 0 {
			overlap = textnorm.CommonPrefixLen(prevHypWords, words)
		}
		if overlap > 0 {
			commit(words[:overlap], cfg.StablePrefixGuardWords, now, "emit")
		}
		prevHypWords = words
		end += stepSamples
	}

	if len(prevHypWords) > 0 {
		commit(prevHypWords, cfg.SilenceFlushGuardWords, float64(len(samples))/float64(sampleRate), "emit")
	}

	return Result{Text: textnorm.CollapseWhitespace(strings.Join(out, " ")), Trace: trace}, nil
}

func transcribeClip(model *asrmodel.Model, clip []float32) string {
	text := model.Transcribe(clip)
	text = textnorm.CollapseWhitespace(text)
	if text == "" || textnorm.IsHallucination(text) {
		return ""
	}
	return text
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
