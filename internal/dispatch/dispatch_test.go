package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/speechdesk/speechdesk/internal/dispatch"
)

func TestMatchClientByClassContains(t *testing.T) {
	c := dispatch.Client{Class: "firefox"}
	match := dispatch.AppMatch{ClassContains: []string{"chromium", "firefox"}}
	assert.True(t, dispatch.MatchClient(c, match))
}

func TestMatchClientByTitleContains(t *testing.T) {
	c := dispatch.Client{Title: "My Notes - Obsidian"}
	match := dispatch.AppMatch{TitleContains: []string{"obsidian"}}
	assert.True(t, dispatch.MatchClient(c, match))
}

func TestMatchClientNoMatch(t *testing.T) {
	c := dispatch.Client{Class: "kitty"}
	match := dispatch.AppMatch{ClassContains: []string{"firefox"}}
	assert.False(t, dispatch.MatchClient(c, match))
}

func TestSelectPreferredClientPicksFirstWhenNoActiveWorkspaceKnown(t *testing.T) {
	clients := []dispatch.Client{{Address: "0xa"}, {Address: "0xb"}}
	picked, ok := dispatch.SelectPreferredClient(clients)
	assert.True(t, ok)
	assert.Equal(t, "0xa", picked.Address)
}

func TestSelectPreferredClientEmptyYieldsNoMatch(t *testing.T) {
	_, ok := dispatch.SelectPreferredClient(nil)
	assert.False(t, ok)
}
