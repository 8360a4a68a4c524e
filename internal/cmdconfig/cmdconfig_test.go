package cmdconfig_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/speechdesk/speechdesk/internal/cmdconfig"
)

func TestDefaultConfigHasTerminalApp(t *testing.T) {
	cfg := cmdconfig.Default()
	var found bool
	for _, app := range cfg.Apps {
		if app.ID == "terminal" {
			found = true
			assert.Contains(t, app.Aliases, "shell")
		}
	}
	assert.True(t, found)
}

func TestCommandDetachedOrDefaultDefaultsTrue(t *testing.T) {
	cmd := cmdconfig.Command{ID: "x"}
	assert.True(t, cmd.DetachedOrDefault())
}

func TestCommandDetachedOrDefaultHonorsExplicitFalse(t *testing.T) {
	f := false
	cmd := cmdconfig.Command{ID: "x", Detached: &f}
	assert.False(t, cmd.DetachedOrDefault())
}
