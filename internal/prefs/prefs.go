// Package prefs persists operator preferences and the last run form.
// Preferences are stored in ~/.config/stm2mon/prefs.toml.
package prefs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/stm2mon/internal/ingest"
)

// Prefs holds user preferences for stm2mon.
type Prefs struct {
	Theme string `toml:"theme"`
	// LastRun is the form as it was when the last run started.
	LastRun ingest.RunInput `toml:"last_run"`
}

const (
	defaultPrefsPath = "~/.config/stm2mon/prefs.toml"
	defaultTheme     = "Nightfox"
)

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load reads preferences from the given path, falling back to defaults if missing.
func Load(path string) (Prefs, error) {
	prefs := Prefs{Theme: defaultTheme}

	resolved, err := resolvePath(path)
	if err != nil {
		return prefs, nil
	}

	file, err := os.Open(resolved)
	if err != nil {
		return prefs, nil // Missing or unreadable: defaults
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return prefs, nil // Graceful degradation
	}

	if err := toml.Unmarshal(bytes, &prefs); err != nil {
		return Prefs{Theme: defaultTheme}, nil // Graceful degradation
	}

	if strings.TrimSpace(prefs.Theme) == "" {
		prefs.Theme = defaultTheme
	}

	return prefs, nil
}

// Save writes preferences to the given path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	return nil
}

// FormDefaults returns configured with every blank field taken from the
// last run. Configured values always win.
func (p Prefs) FormDefaults(configured ingest.RunInput) ingest.RunInput {
	pick := func(primary, fallback string) string {
		if strings.TrimSpace(primary) != "" {
			return primary
		}
		return fallback
	}
	return ingest.RunInput{
		LogPath:         pick(configured.LogPath, p.LastRun.LogPath),
		RunID:           pick(configured.RunID, p.LastRun.RunID),
		Material:        pick(configured.Material, p.LastRun.Material),
		Density:         pick(configured.Density, p.LastRun.Density),
		ZRatio:          pick(configured.ZRatio, p.LastRun.ZRatio),
		TargetThickness: pick(configured.TargetThickness, p.LastRun.TargetThickness),
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
