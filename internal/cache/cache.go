// Package cache persists the preparation stage's output so a later run can
// skip recomputing it.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dusk-indust/pacer/internal/training"
)

// Layout under the output directory.
const (
	DirName  = ".pacer"
	FileName = "preparation.json"
	version  = 2
)

// ErrNotFound is returned by Load when no cache exists.
var ErrNotFound = errors.New("cache: no preparation cache")

// ErrStale is returned by Snapshot.Check when the cache was computed for
// other inputs.
var ErrStale = errors.New("cache: preparation cache is stale")

// Snapshot is what the preparation stage computed.
type Snapshot struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	Inputs    []string  `json:"inputs"`

	// AnalysisDays and ProfilePath are the settings the summary was
	// computed with.
	AnalysisDays int    `json:"analysisDays"`
	ProfilePath  string `json:"profilePath,omitempty"`

	Profile    training.AthleteProfile `json:"profile"`
	Summary    training.Summary        `json:"summary"`
	WeeklyLoad []training.WeekLoad     `json:"weeklyLoad"`
}

// Info describes the cache state of an output directory.
type Info struct {
	Path      string
	Exists    bool
	CreatedAt time.Time
	Inputs    []string
}

// Path returns the cache file location for outputDir.
func Path(outputDir string) string {
	return filepath.Join(outputDir, DirName, FileName)
}

// Exists reports whether a cache file is present.
func Exists(outputDir string) bool {
	info, err := os.Stat(Path(outputDir))
	return err == nil && info.Mode().IsRegular()
}

// Scan returns the cache state without failing on a missing or unreadable
// file.
func Scan(outputDir string) Info {
	info := Info{Path: Path(outputDir)}
	snap, err := Load(outputDir)
	if err != nil {
		return info
	}
	info.Exists = true
	info.CreatedAt = snap.CreatedAt
	info.Inputs = snap.Inputs
	return info
}

// Write stores snap atomically and returns the file path.
func Write(outputDir string, snap Snapshot) (string, error) {
	path := Path(outputDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("cache: create dir: %w", err)
	}

	snap.Version = version
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	snap.Inputs = slices.Clone(snap.Inputs)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("cache: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), FileName+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("cache: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("cache: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("cache: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("cache: rename: %w", err)
	}
	return path, nil
}

// Load reads the cache. It returns ErrNotFound when there is none.
func Load(outputDir string) (Snapshot, error) {
	data, err := os.ReadFile(Path(outputDir))
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("cache: read: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("cache: decode %s: %w", Path(outputDir), err)
	}
	if snap.Version != version {
		return Snapshot{}, fmt.Errorf("cache: unsupported version %d", snap.Version)
	}
	return snap, nil
}

// Check reports ErrStale unless the snapshot was computed from exactly these
// activity files, analysis window and profile.
func (s Snapshot) Check(inputs []string, analysisDays int, profilePath string) error {
	switch {
	case !slices.Equal(s.Inputs, inputs):
		return fmt.Errorf("%w: activity files changed (%d cached, %d now)", ErrStale, len(s.Inputs), len(inputs))
	case s.AnalysisDays != analysisDays:
		return fmt.Errorf("%w: analysis window is %d days, cached %d", ErrStale, analysisDays, s.AnalysisDays)
	case s.ProfilePath != profilePath:
		return fmt.Errorf("%w: profile changed from %q to %q", ErrStale, s.ProfilePath, profilePath)
	}
	return nil
}
