// Command dictation is the live-dictation daemon: streaming transcription
// of a sliding audio window with tail-revision typing. It exposes the
// same start/stop/status surface as the voice-command daemon so the mode
// arbiter (internal/arbiter) can drive either one identically.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/speechdesk/speechdesk/internal/asrmodel"
	"github.com/speechdesk/speechdesk/internal/audio"
	"github.com/speechdesk/speechdesk/internal/audioring"
	"github.com/speechdesk/speechdesk/internal/config"
	"github.com/speechdesk/speechdesk/internal/decoder"
	"github.com/speechdesk/speechdesk/internal/statepaths"
)

const daemonName = "local-live-dictation"

func loadEnvFile() {
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".config", "speechdesk", ".env"))
	}
}

func main() {
	loadEnvFile()

	cmd := "toggle"
	if len(os.Args) > 1 {
		cmd = strings.ToLower(os.Args[1])
	}

	var code int
	switch cmd {
	case "run":
		code = runForeground(os.Args[2:])
	case "start":
		code = start()
	case "stop":
		code = stop()
	case "daemon-start":
		code = daemonStart()
	case "daemon-stop":
		code = daemonStop()
	case "status":
		code = printStatus()
	case "toggle":
		code = toggle()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		code = 2
	}
	os.Exit(code)
}

func paths() *statepaths.Dir { return statepaths.New(daemonName) }

func start() int {
	p := paths()
	if err := p.EnsureDir(); err != nil {
		fmt.Println("start-failed")
		return 1
	}
	p.RemoveStop()
	p.SetTypingEnabled(true)

	if p.IsRunning() {
		fmt.Println("typing-on")
		return 0
	}
	return daemonStart()
}

func stop() int {
	p := paths()
	if !p.IsRunning() {
		p.CleanAll()
		fmt.Println("already-off")
		return 0
	}
	if !p.TypingEnabled() {
		fmt.Println("already-off")
		return 0
	}
	p.SetTypingEnabled(false)
	fmt.Println("typing-off")
	return 0
}

func daemonStart() int {
	p := paths()
	if err := p.EnsureDir(); err != nil {
		fmt.Println("start-failed")
		return 1
	}
	if p.IsRunning() {
		fmt.Println("already-running")
		return 0
	}
	p.RemoveStop()

	self, err := os.Executable()
	if err != nil {
		fmt.Println("start-failed")
		return 1
	}

	logPath := statepaths.LogFilePath(daemonName)
	_ = os.MkdirAll(filepath.Dir(logPath), 0o755)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Println("start-failed")
		return 1
	}
	defer logFile.Close()

	c := exec.Command(self, "run")
	c.Stdout = logFile
	c.Stderr = logFile
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := c.Start(); err != nil {
		fmt.Println("start-failed")
		return 1
	}
	_ = c.Process.Release()

	for i := 0; i < 60; i++ {
		if p.IsRunning() {
			fmt.Println("started")
			return 0
		}
		time.Sleep(50 * time.Millisecond)
	}
	fmt.Println("start-failed")
	return 1
}

func daemonStop() int {
	p := paths()
	pid := p.ReadPID()
	if pid == 0 || !statepaths.PIDAlive(pid) {
		p.CleanAll()
		fmt.Println("daemon-stopped")
		return 0
	}

	_ = p.TouchStop()
	_ = syscall.Kill(pid, syscall.SIGTERM)

	for i := 0; i < 80; i++ {
		if !statepaths.PIDAlive(pid) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if statepaths.PIDAlive(pid) {
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
	p.CleanAll()
	fmt.Println("daemon-stopped")
	return 0
}

func printStatus() int {
	p := paths()
	running := p.IsRunning()
	switch {
	case running && p.TypingEnabled():
		fmt.Println("typing-on")
	case running:
		fmt.Println("warm")
	default:
		fmt.Println("stopped")
	}
	return 0
}

func toggle() int {
	p := paths()
	if p.IsRunning() && p.TypingEnabled() {
		return stop()
	}
	return start()
}

func runForeground(args []string) int {
	p := paths()
	if err := p.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "dictation: %v\n", err)
		return 1
	}
	if err := p.WritePID(os.Getpid()); err != nil {
		fmt.Fprintf(os.Stderr, "dictation: %v\n", err)
		return 1
	}
	p.RemoveStop()
	defer p.CleanAll()

	cfg, err := config.ParseFlags(flag.NewFlagSet("dictation run", flag.ContinueOnError), args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dictation: %v\n", err)
		return 1
	}

	model, err := asrmodel.New(asrmodel.Config{
		Encoder:    cfg.WhisperEncoder,
		Decoder:    cfg.WhisperDecoder,
		Tokens:     cfg.WhisperTokens,
		SampleRate: cfg.SampleRate,
		Language:   cfg.Language,
		Provider:   cfg.Provider,
		NumThreads: cfg.NumThreads,
		Verbose:    cfg.Verbose,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dictation: load model: %v\n", err)
		return 1
	}
	defer model.Close()

	dcfg := decoder.DefaultConfig()
	dcfg.Debug = cfg.Verbose || dcfg.Debug

	// Capacity is sized against the highest capture rate we're likely to
	// see (48kHz); the actual device rate is only known once NewCapturer
	// picks a device, and Buffer has no resize path.
	buffer := audioring.New(int(dcfg.MaxBufferSeconds * 48000))
	capturer, err := audio.NewCapturer(buffer, cfg.DeviceName, cfg.DeviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dictation: no input device: %v\n", err)
		return 1
	}
	defer capturer.Close()

	if err := capturer.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "dictation: start capture: %v\n", err)
		return 1
	}
	defer capturer.Stop()

	dec := decoder.New(dcfg, model, buffer, capturer.DeviceSampleRate(), cfg.SampleRate, p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return run(ctx, dec)
}

func run(ctx context.Context, dec *decoder.Decoder) int {
	if err := dec.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "dictation: %v\n", err)
		return 1
	}
	return 0
}
