package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"finresearch/domain/research"
	"finresearch/internal"
	"finresearch/internal/errors"
	"finresearch/models"
	"finresearch/ports"
)

// RunStore archives run states as JSON files, one per run. It is the archive
// used when no database is configured.
type RunStore struct {
	BaseDir string

	mu     sync.RWMutex
	logger *internal.Logger
}

var _ ports.RunRepository = (*RunStore)(nil)

// NewRunStore creates a file archive rooted at baseDir
func NewRunStore(baseDir string) *RunStore {
	return &RunStore{
		BaseDir: baseDir,
		logger:  internal.DefaultLogger.With("RunStore"),
	}
}

// EnsureBaseDir creates the base directory if it doesn't exist
func (s *RunStore) EnsureBaseDir() error {
	return os.MkdirAll(s.BaseDir, 0755)
}

// Save writes the run to <started>_<runID>.json
func (s *RunStore) Save(_ context.Context, state *research.RunState) error {
	if state == nil {
		return errors.InvalidInput("run state is required")
	}
	if !validID(state.RunID) {
		return errors.InvalidInput("invalid run id " + state.RunID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.EnsureBaseDir(); err != nil {
		return fmt.Errorf("failed to create base directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	// an earlier save of the same run may carry a different timestamp prefix
	if existing, _ := s.findFile(state.RunID); existing != "" {
		_ = os.Remove(existing)
	}

	filename := fmt.Sprintf("%s_%s.json", state.StartedAt.UTC().Format("2006-01-02_15-04-05"), state.RunID)
	tmp := filepath.Join(s.BaseDir, "."+filename+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.BaseDir, filename)); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}
	return nil
}

// Get loads a run by ID
func (s *RunStore) Get(_ context.Context, runID string) (*research.RunState, error) {
	if !validID(runID) {
		return nil, errors.NotFound("run " + runID)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.findFile(runID)
	if err != nil {
		return nil, err
	}
	if file == "" {
		return nil, errors.NotFound("run " + runID)
	}
	return loadRunFile(file)
}

// ListRecent returns the newest runs first
func (s *RunStore) ListRecent(_ context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := s.listRunFiles()
	if err != nil {
		return nil, err
	}
	// timestamp prefix sorts chronologically
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	out := make([]models.RunSummary, 0, min(limit, len(files)))
	for _, file := range files {
		if len(out) >= limit {
			break
		}
		state, err := loadRunFile(file)
		if err != nil {
			s.logger.Warn("skipping unreadable run file %s: %v", filepath.Base(file), err)
			continue
		}
		out = append(out, summarize(state))
	}
	return out, nil
}

func summarize(state *research.RunState) models.RunSummary {
	caps := make([]string, 0, len(state.ExecutedCapabilities))
	for _, c := range state.ExecutedCapabilities {
		caps = append(caps, c.String())
	}
	return models.RunSummary{
		RunID:        state.RunID,
		Question:     state.Request.OriginalQuestion,
		Capabilities: caps,
		RecordCount:  state.EvidenceLedger.Len(),
		StartedAt:    state.StartedAt,
		DurationMs:   state.DurationMs,
	}
}

func (s *RunStore) findFile(runID string) (string, error) {
	files, err := s.listRunFiles()
	if err != nil {
		return "", err
	}
	suffix := "_" + runID + ".json"
	for _, f := range files {
		if strings.HasSuffix(f, suffix) {
			return f, nil
		}
	}
	return "", nil
}

func (s *RunStore) listRunFiles() ([]string, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		files = append(files, filepath.Join(s.BaseDir, name))
	}
	return files, nil
}

func loadRunFile(path string) (*research.RunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}
	var state research.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &state, nil
}

// validID keeps run IDs from escaping the base directory
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}
