package intent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/speechdesk/speechdesk/internal/cmdconfig"
	"github.com/speechdesk/speechdesk/internal/intent"
)

func TestParseOpenApp(t *testing.T) {
	i, ok := intent.Parse("open the terminal")
	assert.True(t, ok)
	assert.Equal(t, "open", i.Kind)
	assert.Equal(t, "terminal", i.Payload)
}

func TestParseCloseActiveBareVerb(t *testing.T) {
	i, ok := intent.Parse("close")
	assert.True(t, ok)
	assert.Equal(t, "close-active", i.Kind)
}

func TestParseCloseActiveWindowPhrase(t *testing.T) {
	i, ok := intent.Parse("close this window")
	assert.True(t, ok)
	assert.Equal(t, "close-active", i.Kind)
}

func TestParseCloseNamedApp(t *testing.T) {
	i, ok := intent.Parse("close discord")
	assert.True(t, ok)
	assert.Equal(t, "close", i.Kind)
	assert.Equal(t, "discord", i.Payload)
}

func TestParseSearch(t *testing.T) {
	i, ok := intent.Parse("search for golang generics")
	assert.True(t, ok)
	assert.Equal(t, "search", i.Kind)
	assert.Equal(t, "golang generics", i.Payload)
}

func TestParseZoomInWithCount(t *testing.T) {
	i, ok := intent.Parse("zoom in three times")
	assert.True(t, ok)
	assert.Equal(t, "zoom-in", i.Kind)
	assert.Equal(t, "3", i.Payload)
}

func TestParseMoveActiveWindowToWorkspace(t *testing.T) {
	i, ok := intent.Parse("move this window to workspace three")
	assert.True(t, ok)
	assert.Equal(t, "move-active-workspace", i.Kind)
	assert.Equal(t, "3", i.Payload)
}

func TestParseMoveNamedAppToWorkspace(t *testing.T) {
	i, ok := intent.Parse("move discord to workspace 2")
	assert.True(t, ok)
	assert.Equal(t, "move-app-workspace", i.Kind)
}

func TestParseNoMatchReturnsFalse(t *testing.T) {
	_, ok := intent.Parse("the weather is nice today")
	assert.False(t, ok)
}

func TestParseRepeatCountDefaultsWhenNoFactors(t *testing.T) {
	assert.Equal(t, 1, intent.ParseRepeatCount("", 1))
}

func TestParseRepeatCountMultipliesFactors(t *testing.T) {
	assert.Equal(t, 6, intent.ParseRepeatCount("two times three", 1))
}

func TestParseRepeatCountClampsToMax(t *testing.T) {
	assert.Equal(t, intent.ZoomRepeatMax, intent.ParseRepeatCount("thirty thirty", 1))
}

func TestResolveAppExactAlias(t *testing.T) {
	cfg := cmdconfig.Default()
	app, ok := intent.ResolveApp(cfg, "shell")
	assert.True(t, ok)
	assert.Equal(t, "terminal", app.ID)
}

func TestResolveAppUnknownTarget(t *testing.T) {
	cfg := cmdconfig.Default()
	_, ok := intent.ResolveApp(cfg, "nonexistent-app-xyz")
	assert.False(t, ok)
}

func TestResolveCustomCommandByAlias(t *testing.T) {
	cfg := cmdconfig.Default()
	normalized := intent.NormalizeCommandText("next workspace")
	cmd, ok := intent.ResolveCustomCommand(cfg, normalized)
	assert.True(t, ok)
	assert.Equal(t, "workspace_next", cmd.ID)
}

func TestResolveCustomCommandWithRunPrefix(t *testing.T) {
	cfg := cmdconfig.Default()
	normalized := intent.NormalizeCommandText("run next workspace")
	cmd, ok := intent.ResolveCustomCommand(cfg, normalized)
	assert.True(t, ok)
	assert.Equal(t, "workspace_next", cmd.ID)
}

func TestIntentKeyIsStableAcrossCase(t *testing.T) {
	a := intent.Intent{Kind: "open", Payload: "Terminal"}
	b := intent.Intent{Kind: "open", Payload: "terminal"}
	assert.Equal(t, a.Key(), b.Key())
}
