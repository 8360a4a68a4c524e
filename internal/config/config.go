// Package config provides the shared model/engine configuration and CLI
// flag parsing used by both the dictation and command daemons. Component
// timing constants (step/window seconds, VAD thresholds, revision
// budgets, and so on) are environment-variable overridable per component
// and live alongside the component that consumes them (internal/decoder,
// internal/command); this package only owns what both daemons share:
// where the speech model lives and which hardware provider decodes it.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/speechdesk/speechdesk/internal/sherpa"
)

// Config holds the offline speech model location and hardware settings
// shared by the dictation and command daemons.
type Config struct {
	ModelDir       string // Base directory containing model files
	WhisperEncoder string
	WhisperDecoder string
	WhisperTokens  string

	SampleRate int    // Speech model's native rate (16000 for whisper)
	Language   string // Recognition language code, or "auto"

	Provider   string // Hardware acceleration provider (cpu, cuda, coreml)
	NumThreads int     // 0 = auto-detect based on CPU cores

	DeviceName string // Explicit input device name override (fuzzy-matched)

	Verbose bool
}

// DefaultConfig returns sensible defaults, mirroring the original
// implementation's environment-variable defaults where spec.md names them.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		ModelDir:   filepath.Join(homeDir, ".speechdesk", "models"),
		SampleRate: 16000,
		Language:   "en",
		Provider:   "",
		NumThreads: 0,
	}
}

// ParseFlags parses flags into a fresh FlagSet (so each daemon binary can
// compose its own subcommand flags alongside these) and returns a Config.
func ParseFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := DefaultConfig()

	fs.StringVar(&cfg.ModelDir, "model-dir", cfg.ModelDir, "Directory containing the whisper model files")
	fs.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "Speech model sample rate")
	fs.StringVar(&cfg.Language, "language", cfg.Language, "Recognition language code, or 'auto'")
	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "Hardware acceleration provider (cpu, cuda, coreml); auto-detected if empty")
	fs.IntVar(&cfg.NumThreads, "num-threads", cfg.NumThreads, "Model thread count (0 = auto-detect)")
	fs.StringVar(&cfg.DeviceName, "device-name", cfg.DeviceName, "Explicit input device name override (fuzzy-matched)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Provider == "" {
		cfg.Provider = detectProvider()
	}
	cfg.normalizeThreadCount()

	cfg.WhisperEncoder = filepath.Join(cfg.ModelDir, "whisper", "whisper-small-encoder.int8.onnx")
	cfg.WhisperDecoder = filepath.Join(cfg.ModelDir, "whisper", "whisper-small-decoder.int8.onnx")
	cfg.WhisperTokens = filepath.Join(cfg.ModelDir, "whisper", "whisper-small-tokens.txt")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalizeThreadCount() {
	if c.NumThreads == 0 {
		c.NumThreads = max(1, runtime.NumCPU()/3)
	}
}

func (c *Config) validate() error {
	for _, path := range []string{c.WhisperEncoder, c.WhisperDecoder, c.WhisperTokens} {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("required model file not found: %s", path)
		}
	}
	return nil
}

// EnvFloat returns the float64 value of the named environment variable,
// or def if it is unset or unparseable. Every timing/threshold constant
// in the dictation and command daemons is overridable this way.
func EnvFloat(name string, def float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// EnvInt returns the int value of the named environment variable, or def
// if it is unset or unparseable.
func EnvInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvBool returns the boolean value of the named environment variable,
// or def if unset. Recognizes "0/false/no/off" as false and anything
// else non-empty as true.
func EnvBool(name string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	if v == "" {
		return def
	}
	switch v {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

// EnvString returns the named environment variable, or def if unset/empty.
func EnvString(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}

func detectProvider() string {
	switch runtime.GOOS {
	case "darwin":
		return "coreml"
	case "linux":
		if sherpa.HasNvidiaGPU() {
			return "cuda"
		}
		return "cpu"
	default:
		return "cpu"
	}
}
