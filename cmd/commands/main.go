// Command commands is the voice-command daemon: short-utterance command
// recognition with phrase accumulation, confirmation-repetition, and
// finalize-on-silence, driving window-manager actions through
// internal/intent. It also exposes a "simulate" subcommand that executes
// a typed phrase directly, bypassing audio capture entirely.
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
	"github.com/speechdesk/speechdesk/internal/cmdconfig"
	"github.com/speechdesk/speechdesk/internal/command"
	"github.com/speechdesk/speechdesk/internal/config"
	"github.com/speechdesk/speechdesk/internal/intent"
	"github.com/speechdesk/speechdesk/internal/statepaths"
	"github.com/speechdesk/speechdesk/internal/textnorm"
)

const daemonName = "local-voice-commands"

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
	case "start", "daemon-start":
		code = daemonStart()
	case "stop", "daemon-stop":
		code = daemonStop()
	case "status":
		code = printStatus()
	case "simulate":
		code = simulate(strings.Join(os.Args[2:], " "))
	case "toggle":
		code = toggle()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		code = 2
	}
	os.Exit(code)
}

func paths() *statepaths.Dir { return statepaths.New(daemonName) }

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
	p.SetTypingEnabled(true)

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
		fmt.Println("already-off")
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
	fmt.Println("stopped")
	return 0
}

func printStatus() int {
	if paths().IsRunning() {
		fmt.Println("running")
		return 0
	}
	fmt.Println("stopped")
	return 0
}

func toggle() int {
	if paths().IsRunning() {
		return daemonStop()
	}
	return daemonStart()
}

// simulate resolves text directly against the custom-command/intent
// tables and executes it, bypassing audio capture and the confirmation-
// repetition gate entirely, matching the original implementation's
// direct-dispatch simulate path.
func simulate(text string) int {
	phrase := textnorm.CollapseWhitespace(text)
	if phrase == "" {
		fmt.Println("simulate-empty")
		return 2
	}

	cmdCfg := cmdconfig.Load()

	fmt.Printf("simulate: %s\n", phrase)

	normalized := intent.NormalizeCommandText(phrase)
	if custom, ok := intent.ResolveCustomCommand(cmdCfg, normalized); ok {
		intent.ExecuteCustom(custom)
		return 0
	}

	parsed, ok := intent.Parse(phrase)
	if !ok {
		fmt.Println("simulate-unresolved")
		return 0
	}
	intent.Execute(parsed, cmdCfg, intent.DefaultZoomOptions())
	return 0
}

func runForeground(args []string) int {
	p := paths()
	if err := p.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "commands: %v\n", err)
		return 1
	}
	if err := p.WritePID(os.Getpid()); err != nil {
		fmt.Fprintf(os.Stderr, "commands: %v\n", err)
		return 1
	}
	p.RemoveStop()
	p.SetTypingEnabled(true)
	defer p.CleanAll()

	cfg, err := config.ParseFlags(flag.NewFlagSet("commands run", flag.ContinueOnError), args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "commands: %v\n", err)
		return 1
	}

	cmdCfg := cmdconfig.Load()

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
		fmt.Fprintf(os.Stderr, "commands: load model: %v\n", err)
		return 1
	}
	defer model.Close()

	vcfg := command.DefaultConfig()
	vcfg.Debug = cfg.Verbose || vcfg.Debug

	buffer := audioring.New(int(vcfg.MaxBufferSeconds * 48000))
	capturer, err := audio.NewCapturer(buffer, cfg.DeviceName, cfg.DeviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "commands: no input device: %v\n", err)
		return 1
	}
	defer capturer.Close()

	if err := capturer.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "commands: start capture: %v\n", err)
		return 1
	}
	defer capturer.Stop()

	rec := command.New(vcfg, cmdCfg, model, buffer, capturer.DeviceSampleRate(), cfg.SampleRate, p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := rec.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "commands: %v\n", err)
		return 1
	}
	return 0
}
