// Package cmdconfig loads the user-editable JSON file describing known
// applications, custom commands, and web-search engines for the voice
// command daemon. A default configuration ships in code and is written
// out on first run; a user's file is merged against those defaults by
// id, so upgrades can add new defaults without clobbering edits.
package cmdconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Match describes how a client window is recognized as belonging to an app.
type Match struct {
	ClassContains []string `json:"class_contains,omitempty"`
	TitleContains []string `json:"title_contains,omitempty"`
}

// App is a launchable, focusable, closable application entry.
type App struct {
	ID      string  `json:"id"`
	Aliases []string `json:"aliases,omitempty"`
	Launch  string  `json:"launch,omitempty"`
	Close   string  `json:"close,omitempty"`
	Match   Match   `json:"match"`
}

// Command is a user-defined phrase that runs a dispatch or shell action.
type Command struct {
	ID         string   `json:"id"`
	Aliases    []string `json:"aliases,omitempty"`
	Dispatch   string   `json:"dispatch,omitempty"`
	Dispatches []string `json:"dispatches,omitempty"`
	Exec       string   `json:"exec,omitempty"`
	Cwd        string   `json:"cwd,omitempty"`
	Detached   *bool    `json:"detached,omitempty"`
	Notify     string   `json:"notify,omitempty"`
}

// DetachedOrDefault reports whether the command should run detached,
// defaulting to true when unset (matching the original's Python default).
func (c Command) DetachedOrDefault() bool {
	if c.Detached == nil {
		return true
	}
	return *c.Detached
}

// Search configures web-search query dispatch.
type Search struct {
	DefaultEngine string            `json:"default_engine"`
	Engines       map[string]string `json:"engines"`
}

// Config is the full voice-command configuration surface.
type Config struct {
	Apps     []App     `json:"apps"`
	Commands []Command `json:"commands"`
	Search   Search    `json:"search"`
}

// Default returns the built-in application/command/search catalog, used
// both as the seed for a newly-created config file and as the merge base
// for an existing one.
func Default() Config {
	return Config{
		Apps: []App{
			{ID: "terminal", Aliases: []string{"terminal", "shell", "console"}, Launch: "ghostty",
				Match: Match{ClassContains: []string{"ghostty", "kitty", "alacritty", "wezterm", "foot", "gnome-terminal", "konsole", "xterm"}}},
			{ID: "browser", Aliases: []string{"browser", "web browser", "internet"}, Launch: "brave",
				Match: Match{ClassContains: []string{"firefox", "chromium", "google-chrome", "brave-browser", "microsoft-edge", "vivaldi"}}},
			{ID: "files", Aliases: []string{"files", "file manager", "explorer"}, Launch: "thunar",
				Match: Match{ClassContains: []string{"thunar", "nautilus", "dolphin", "pcmanfm"}}},
			{ID: "notes", Aliases: []string{"obsidian", "notes", "vault"}, Launch: "obsidian",
				Match: Match{ClassContains: []string{"obsidian"}}},
			{ID: "media", Aliases: []string{"vlc", "vlc player", "media player", "video player"}, Launch: "vlc",
				Match: Match{ClassContains: []string{"vlc"}}},
			{ID: "chat", Aliases: []string{"discord", "chat"}, Launch: "discord",
				Match: Match{ClassContains: []string{"discord", "vesktop"}}},
		},
		Commands: []Command{
			{ID: "workspace_next", Aliases: []string{"next workspace", "workspace next", "go to next workspace"}, Dispatch: "workspace +1", Notify: "Next Workspace"},
			{ID: "workspace_previous", Aliases: []string{"previous workspace", "workspace previous", "go to previous workspace"}, Dispatch: "workspace -1", Notify: "Previous Workspace"},
			{ID: "switch_monitor", Aliases: []string{"switch monitor", "switch to other monitor", "move window to other monitor", "send window to other monitor"},
				Dispatches: []string{"movewindow mon:+1", "focusmonitor +1"}, Notify: "Switch Monitor"},
			{ID: "toggle_floating", Aliases: []string{"toggle floating", "float window", "toggle floating window"}, Dispatch: "togglefloating", Notify: "Toggle Floating"},
			{ID: "toggle_fullscreen", Aliases: []string{"toggle fullscreen", "fullscreen", "full screen"}, Dispatch: "fullscreen 1", Notify: "Toggle Fullscreen"},
		},
		Search: Search{
			DefaultEngine: "duckduckgo",
			Engines: map[string]string{
				"duckduckgo": "https://duckduckgo.com/?q={query}",
				"google":     "https://www.google.com/search?q={query}",
				"bing":       "https://www.bing.com/search?q={query}",
			},
		},
	}
}

// Path returns the config file location, ~/.config/speechdesk/commands.json.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", "speechdesk", "commands.json")
}

// Ensure writes the default config to Path() if no file exists yet.
func Ensure() error {
	path := Path()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cmdconfig: create config dir: %w", err)
	}
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return fmt.Errorf("cmdconfig: marshal default config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Load ensures the config file exists, reads it, and merges it against
// Default() by id: a user entry with a matching id overrides the default
// entry's fields (field-wise, last write wins per top-level key); a
// default entry with no matching user id passes through unchanged; a user
// entry with a novel id is appended.
func Load() Config {
	if err := Ensure(); err != nil {
		return Default()
	}
	raw, err := os.ReadFile(Path())
	if err != nil {
		return Default()
	}
	var user Config
	if err := json.Unmarshal(raw, &user); err != nil {
		return Default()
	}
	return mergeConfig(Default(), user)
}

func mergeConfig(def, user Config) Config {
	out := def
	out.Apps = mergeApps(def.Apps, user.Apps)
	out.Commands = mergeCommands(def.Commands, user.Commands)
	if user.Search.DefaultEngine != "" {
		out.Search.DefaultEngine = user.Search.DefaultEngine
	}
	if len(user.Search.Engines) > 0 {
		merged := map[string]string{}
		for k, v := range def.Search.Engines {
			merged[k] = v
		}
		for k, v := range user.Search.Engines {
			merged[k] = v
		}
		out.Search.Engines = merged
	}
	return out
}

// mergeAppFields shallow-merges u's non-zero fields over d, leaving
// fields u left unset at d's default value (mirrors the original's
// dict.update semantics rather than a full-entry replace).
func mergeAppFields(d, u App) App {
	out := d
	out.ID = d.ID
	if len(u.Aliases) > 0 {
		out.Aliases = u.Aliases
	}
	if u.Launch != "" {
		out.Launch = u.Launch
	}
	if u.Close != "" {
		out.Close = u.Close
	}
	if len(u.Match.ClassContains) > 0 || len(u.Match.TitleContains) > 0 {
		out.Match = u.Match
	}
	return out
}

func mergeCommandFields(d, u Command) Command {
	out := d
	out.ID = d.ID
	if len(u.Aliases) > 0 {
		out.Aliases = u.Aliases
	}
	if u.Dispatch != "" {
		out.Dispatch = u.Dispatch
	}
	if len(u.Dispatches) > 0 {
		out.Dispatches = u.Dispatches
	}
	if u.Exec != "" {
		out.Exec = u.Exec
	}
	if u.Cwd != "" {
		out.Cwd = u.Cwd
	}
	if u.Detached != nil {
		out.Detached = u.Detached
	}
	if u.Notify != "" {
		out.Notify = u.Notify
	}
	return out
}

func mergeApps(defaults, users []App) []App {
	byID := map[string]App{}
	for _, u := range users {
		if u.ID != "" {
			byID[u.ID] = u
		}
	}
	seen := map[string]bool{}
	merged := make([]App, 0, len(defaults)+len(users))
	for _, d := range defaults {
		if d.ID != "" {
			if u, ok := byID[d.ID]; ok {
				merged = append(merged, mergeAppFields(d, u))
				seen[d.ID] = true
				continue
			}
		}
		merged = append(merged, d)
	}
	for _, u := range users {
		if u.ID != "" && seen[u.ID] {
			continue
		}
		merged = append(merged, u)
	}
	return merged
}

func mergeCommands(defaults, users []Command) []Command {
	byID := map[string]Command{}
	for _, u := range users {
		if u.ID != "" {
			byID[u.ID] = u
		}
	}
	seen := map[string]bool{}
	merged := make([]Command, 0, len(defaults)+len(users))
	for _, d := range defaults {
		if d.ID != "" {
			if u, ok := byID[d.ID]; ok {
				merged = append(merged, mergeCommandFields(d, u))
				seen[d.ID] = true
				continue
			}
		}
		merged = append(merged, d)
	}
	for _, u := range users {
		if u.ID != "" && seen[u.ID] {
			continue
		}
		merged = append(merged, u)
	}
	return merged
}
