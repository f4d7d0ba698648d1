// Package training holds the domain values the workflow passes between
// stages and the pure computations over them.
package training

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultEffort is the perceived effort assumed when an export omits it.
const DefaultEffort = 5

// Activity is one recorded workout.
type Activity struct {
	ID             string    `json:"id"`
	Sport          string    `json:"sport"`
	Start          time.Time `json:"start"`
	DurationSec    int       `json:"durationSec"`
	DistanceMeters float64   `json:"distanceMeters,omitempty"`
	ElevationGain  float64   `json:"elevationGain,omitempty"`
	AvgHeartRate   int       `json:"avgHeartRate,omitempty"`
	// Effort is the session RPE on a 1..10 scale.
	Effort int `json:"effort,omitempty"`
}

// Duration returns the moving time.
func (a Activity) Duration() time.Duration {
	return time.Duration(a.DurationSec) * time.Second
}

// Load is the session-RPE training load: minutes times perceived effort.
func (a Activity) Load() float64 {
	effort := a.Effort
	if effort <= 0 {
		effort = DefaultEffort
	}
	return a.Duration().Minutes() * float64(effort)
}

// activityFile accepts either a bare array or {"activities": [...]}.
type activityFile struct {
	Activities []Activity `json:"activities"`
}

// ParseActivities decodes one export.
func ParseActivities(data []byte) ([]Activity, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []Activity
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var f activityFile
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil, err
	}
	return f.Activities, nil
}

// ActivityPaths lists the explicit files followed by every *.json file in
// dir, sorted by name. Duplicates are dropped.
func ActivityPaths(files []string, dir string) ([]string, error) {
	paths := slices.Clone(files)
	if dir != "" {
		matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil {
			return nil, fmt.Errorf("training: scan %s: %w", dir, err)
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		clean := filepath.Clean(p)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	return out, nil
}

// LoadActivities reads every path concurrently and returns the activities
// sorted by start time. Any unreadable or malformed file fails the load.
func LoadActivities(ctx context.Context, paths []string) ([]Activity, error) {
	perFile := make([][]Activity, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("training: read %s: %w", p, err)
			}
			acts, err := ParseActivities(data)
			if err != nil {
				return fmt.Errorf("training: parse %s: %w", p, err)
			}
			perFile[i] = acts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Activity
	for _, acts := range perFile {
		all = append(all, acts...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Start.Before(all[j].Start)
	})
	return all, nil
}
