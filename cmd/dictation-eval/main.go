// Command dictation-eval replays a recorded audio file through the live
// dictation decoder's stable-prefix/tail-revision logic offline, prints
// both a single-pass transcript and the simulated realtime output, and
// (given a reference transcript) reports word error rate for each.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/speechdesk/speechdesk/internal/asrmodel"
	"github.com/speechdesk/speechdesk/internal/decoder"
	"github.com/speechdesk/speechdesk/internal/evalharness"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("dictation-eval", flag.ContinueOnError)
	audioPath := fs.String("audio", "", "path to input audio/video file")
	reference := fs.String("reference", "", "expected phrase/text")
	referenceFile := fs.String("reference-file", "", "path to file containing expected text")
	encoder := fs.String("encoder", os.Getenv("SPEECHDESK_WHISPER_ENCODER"), "whisper encoder model path")
	dec := fs.String("decoder", os.Getenv("SPEECHDESK_WHISPER_DECODER"), "whisper decoder model path")
	tokens := fs.String("tokens", os.Getenv("SPEECHDESK_WHISPER_TOKENS"), "whisper tokens path")
	language := fs.String("language", "en", "language override (e.g. en)")
	sampleRate := fs.Int("sample-rate", 16000, "model sample rate")
	provider := fs.String("provider", "cpu", "sherpa execution provider")
	numThreads := fs.Int("num-threads", 2, "sherpa decode threads")
	verbose := fs.Bool("verbose", false, "print per-step realtime trace")

	stepSeconds := fs.Float64("step-seconds", 0, "override decoder step seconds (0 = default)")
	windowSeconds := fs.Float64("window-seconds", 0, "override decoder window seconds (0 = default)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *audioPath == "" {
		fmt.Fprintln(os.Stderr, "dictation-eval: --audio is required")
		return 2
	}

	ref := *reference
	if *referenceFile != "" {
		data, err := os.ReadFile(*referenceFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dictation-eval: reference file not found: %v\n", err)
			return 2
		}
		ref = string(data)
	}

	ctx := context.Background()

	fmt.Printf("[eval] decoding: %s\n", *audioPath)
	samples, err := evalharness.DecodeAudioFile(ctx, *audioPath, *sampleRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dictation-eval: %v\n", err)
		return 1
	}
	duration := float64(len(samples)) / float64(*sampleRate)
	fmt.Printf("[eval] audio duration: %.2fs @ %dHz\n", duration, *sampleRate)

	fmt.Println("[eval] loading model")
	model, err := asrmodel.New(asrmodel.Config{
		Encoder:    *encoder,
		Decoder:    *dec,
		Tokens:     *tokens,
		SampleRate: *sampleRate,
		Language:   *language,
		Provider:   *provider,
		NumThreads: *numThreads,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dictation-eval: load model: %v\n", err)
		return 1
	}
	defer model.Close()

	fullText := model.Transcribe(samples)

	cfg := decoder.DefaultConfig()
	if *stepSeconds > 0 {
		cfg.StepSeconds = *stepSeconds
	}
	if *windowSeconds > 0 {
		cfg.WindowSeconds = *windowSeconds
	}

	result, err := evalharness.SimulateRealtime(ctx, model, samples, *sampleRate, cfg, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dictation-eval: %v\n", err)
		return 1
	}

	fmt.Println("\n=== Full Transcript (single-pass) ===")
	printOrEmpty(fullText)

	fmt.Println("\n=== Simulated Realtime Output ===")
	printOrEmpty(result.Text)

	if *verbose && len(result.Trace) > 0 {
		fmt.Println("\n=== Realtime Trace ===")
		for _, line := range result.Trace {
			fmt.Println(line)
		}
	}

	if ref != "" {
		werFull, refN, hypNFull, editsFull := evalharness.WordErrorRate(ref, fullText)
		werSim, _, hypNSim, editsSim := evalharness.WordErrorRate(ref, result.Text)

		fmt.Println("\n=== Accuracy vs Reference ===")
		fmt.Printf("reference_words=%d\n", refN)
		fmt.Printf("full_pass_wer=%.3f edits=%d hyp_words=%d\n", werFull, editsFull, hypNFull)
		fmt.Printf("simulated_rt_wer=%.3f edits=%d hyp_words=%d\n", werSim, editsSim, hypNSim)
	}

	return 0
}

func printOrEmpty(s string) {
	if s == "" {
		fmt.Println("<empty>")
		return
	}
	fmt.Println(s)
}
