// Command arbiter runs the mode-arbiter daemon: it watches raw keyboard
// input for a clean double-tap of either Ctrl key and toggles between
// live dictation and voice commands, enforcing that at most one runs at
// a time. It takes no subcommands; SIGTERM exits cleanly.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/speechdesk/speechdesk/internal/arbiter"
)

func main() {
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".config", "speechdesk", ".env"))
	}

	cfg := arbiter.DefaultConfig()
	if !cfg.Debug {
		log.SetLevel(log.WarnLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	a := arbiter.New(cfg)
	if err := a.Run(ctx); err != nil {
		log.Fatal("arbiter exited with error", "err", err)
	}
}
