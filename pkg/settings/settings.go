// Package settings handles the persisted viewer options.
// Options live in a flat YAML file; defaults are merged in on load so a
// partial file (or no file at all) always yields a complete Settings value.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings is the flat mapping of named viewer options.
type Settings struct {
	// Node geometry
	NodeWidth   int `yaml:"node_width" json:"node_width"`
	NodeHeight  int `yaml:"node_height" json:"node_height"`
	NodeSpacing int `yaml:"node_spacing" json:"node_spacing"`
	RankSpacing int `yaml:"rank_spacing" json:"rank_spacing"`

	// Colors (hex)
	UserNodeColor string `yaml:"user_node_color" json:"user_node_color"`
	CharNodeColor string `yaml:"char_node_color" json:"char_node_color"`
	BookmarkColor string `yaml:"bookmark_color" json:"bookmark_color"`
	EdgeColor     string `yaml:"edge_color" json:"edge_color"`

	// Toggles
	UseChatColors bool `yaml:"use_chat_colors" json:"use_chat_colors"`
	AvatarAsRoot  bool `yaml:"avatar_as_root" json:"avatar_as_root"`
	LockNodes     bool `yaml:"lock_nodes" json:"lock_nodes"`

	// Orientation is the layout direction applied on open ("LR" or "TB").
	Orientation string `yaml:"orientation" json:"orientation"`

	// TooltipDelayMs is the hover delay before a node preview appears.
	TooltipDelayMs int `yaml:"tooltip_delay_ms" json:"tooltip_delay_ms"`
}

// Defaults returns the built-in option values.
func Defaults() Settings {
	return Settings{
		NodeWidth:      25,
		NodeHeight:     25,
		NodeSpacing:    10,
		RankSpacing:    50,
		UserNodeColor:  "#8be9fd",
		CharNodeColor:  "#bd93f9",
		BookmarkColor:  "#f1fa8c",
		EdgeColor:      "#6272a4",
		UseChatColors:  false,
		AvatarAsRoot:   false,
		LockNodes:      false,
		Orientation:    "LR",
		TooltipDelayMs: 250,
	}
}

// DefaultPath returns the conventional settings location under projectDir.
func DefaultPath(projectDir string) string {
	return filepath.Join(projectDir, ".timelines", "settings.yaml")
}

// Load reads settings from path, merging defaults for any option the file
// omits. A missing file is not an error: it yields the defaults.
func Load(path string) (Settings, error) {
	s := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("read settings: %w", err)
	}

	// Unmarshal over the defaults so absent keys keep their default value.
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("parsing settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return Defaults(), fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// Save writes the settings to path, creating parent directories as needed.
// On failure the caller's in-memory Settings remain authoritative; nothing
// is partially written over the old file.
func Save(s Settings, path string) error {
	if err := s.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Reset writes the defaults to path and returns them.
func Reset(path string) (Settings, error) {
	s := Defaults()
	if err := Save(s, path); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks if the option values are logically valid
func (s Settings) Validate() error {
	if s.NodeWidth <= 0 || s.NodeHeight <= 0 {
		return fmt.Errorf("node geometry must be positive (width=%d height=%d)", s.NodeWidth, s.NodeHeight)
	}
	if s.NodeSpacing < 0 || s.RankSpacing < 0 {
		return fmt.Errorf("spacing cannot be negative (node=%d rank=%d)", s.NodeSpacing, s.RankSpacing)
	}
	if s.Orientation != "LR" && s.Orientation != "TB" {
		return fmt.Errorf("orientation must be LR or TB, got %q", s.Orientation)
	}
	if s.TooltipDelayMs < 0 {
		return fmt.Errorf("tooltip_delay_ms (%d) cannot be negative", s.TooltipDelayMs)
	}
	return nil
}
