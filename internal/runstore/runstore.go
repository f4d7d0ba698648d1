// Package runstore keeps workflow runs started through the MCP server so
// their results can be fetched later.
package runstore

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a run.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	// StateRejected marks runs whose configuration was invalid.
	StateRejected State = "rejected"
)

// ErrNotFound is returned for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// Run is one workflow execution.
type Run struct {
	ID         string         `json:"id"`
	State      State          `json:"state"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt,omitzero"`
	OutputDir  string         `json:"outputDir"`
	Error      string         `json:"error,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
}

// ListRequest filters and paginates List.
type ListRequest struct {
	State State
	// PageToken is the ID of the last run of the previous page.
	PageToken string
	// PageSize <= 0 returns every match.
	PageSize int
}

// ListResponse is one page of runs.
type ListResponse struct {
	Runs          []Run  `json:"runs"`
	TotalSize     int    `json:"totalSize"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// NewRunID returns a random run ID.
func NewRunID() string {
	return uuid.NewString()
}

// Store is a concurrency-safe in-memory run store. Runs keep their
// insertion order for deterministic pagination.
type Store struct {
	mu    sync.RWMutex
	runs  map[string]*Run
	order []string
}

// New returns an empty Store.
func New() *Store {
	return &Store{runs: make(map[string]*Run)}
}

// Create stores a new run. IDs must be unique.
func (s *Store) Create(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		return errors.New("runstore: run id is required")
	}
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("runstore: run %q already exists", run.ID)
	}
	s.runs[run.ID] = copyRun(&run)
	s.order = append(s.order, run.ID)
	return nil
}

// Get returns a copy of the run that is safe to mutate.
func (s *Store) Get(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("runstore: %w: %q", ErrNotFound, id)
	}
	return copyRun(r), nil
}

// Update applies fn to the stored run under the write lock.
func (s *Store) Update(id string, fn func(*Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("runstore: %w: %q", ErrNotFound, id)
	}
	fn(r)
	r.ID = id
	return nil
}

// List returns the runs matching req in insertion order.
func (s *Store) List(req ListRequest) (*ListResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if req.PageToken != "" {
		found := false
		for i, id := range s.order {
			if id == req.PageToken {
				start, found = i+1, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("runstore: invalid page token %q", req.PageToken)
		}
	}

	total := 0
	matched := []Run{}
	for i, id := range s.order {
		r := s.runs[id]
		if req.State != "" && r.State != req.State {
			continue
		}
		total++
		if i >= start {
			matched = append(matched, *copyRun(r))
		}
	}

	var next string
	if req.PageSize > 0 && len(matched) > req.PageSize {
		next = matched[req.PageSize-1].ID
		matched = matched[:req.PageSize]
	}
	return &ListResponse{Runs: matched, TotalSize: total, NextPageToken: next}, nil
}

func copyRun(src *Run) *Run {
	dst := *src
	if src.Result != nil {
		dst.Result = copyValue(src.Result).(map[string]any)
	}
	return &dst
}

// copyValue deep-copies the maps and slices of a plain JSON-like value.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case map[string]string:
		return maps.Clone(t)
	default:
		return v
	}
}
