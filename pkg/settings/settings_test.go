package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope", "settings.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if s != Defaults() {
		t.Fatalf("got %+v, want defaults", s)
	}
}

func TestLoad_PartialFileMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	partial := "node_width: 40\nlock_nodes: true\n"
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.NodeWidth != 40 || !s.LockNodes {
		t.Fatalf("file values not applied: %+v", s)
	}
	d := Defaults()
	if s.NodeHeight != d.NodeHeight || s.EdgeColor != d.EdgeColor || s.Orientation != d.Orientation {
		t.Fatalf("absent keys lost their defaults: %+v", s)
	}
}

func TestLoad_MalformedFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if s != Defaults() {
		t.Fatalf("parse failure should yield defaults, got %+v", s)
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("orientation: diagonal\n"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if s != Defaults() {
		t.Fatalf("invalid settings should yield defaults, got %+v", s)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	s := Defaults()
	s.NodeWidth = 32
	s.UseChatColors = true
	s.Orientation = "TB"

	if err := Save(s, path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != s {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, s)
	}

	// No temp file left behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temporary file left on disk")
	}
}

func TestSave_RejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := Defaults()
	s.NodeWidth = 0
	if err := Save(s, path); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("invalid settings must not be written")
	}
}

func TestReset_OverwritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	custom := Defaults()
	custom.NodeWidth = 99
	if err := Save(custom, path); err != nil {
		t.Fatal(err)
	}

	s, err := Reset(path)
	if err != nil {
		t.Fatal(err)
	}
	if s != Defaults() {
		t.Fatalf("Reset returned %+v", s)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != Defaults() {
		t.Fatalf("file not reset: %+v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		ok     bool
	}{
		{"defaults", func(*Settings) {}, true},
		{"zero width", func(s *Settings) { s.NodeWidth = 0 }, false},
		{"negative spacing", func(s *Settings) { s.NodeSpacing = -1 }, false},
		{"bad orientation", func(s *Settings) { s.Orientation = "RL" }, false},
		{"negative tooltip delay", func(s *Settings) { s.TooltipDelayMs = -5 }, false},
		{"TB orientation", func(s *Settings) { s.Orientation = "TB" }, true},
	}
	for _, tt := range tests {
		s := Defaults()
		tt.mutate(&s)
		err := s.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("%s: Validate() = %v, want ok=%v", tt.name, err, tt.ok)
		}
	}
}
