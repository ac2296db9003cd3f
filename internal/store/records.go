// Package store persists suggestion records and the analytics log.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"codebrew/internal/review"
)

const recordTimeLayout = "20060102-150405.000000"

// SuggestionStore writes one JSON file per successful analysis. Files are
// named by generation time and never overwritten.
type SuggestionStore struct {
	dir string
	now func() time.Time
}

// NewSuggestionStore creates the directory if needed
func NewSuggestionStore(dir string) (*SuggestionStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create suggestions dir: %w", err)
	}
	return &SuggestionStore{dir: dir, now: time.Now}, nil
}

// Dir returns the directory records are written to
func (s *SuggestionStore) Dir() string {
	return s.dir
}

// Save writes s and returns the record path
func (s *SuggestionStore) Save(sug review.Suggestion) (string, error) {
	data, err := json.MarshalIndent(sug, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode suggestion: %w", err)
	}

	base := "suggestion_" + s.now().UTC().Format(recordTimeLayout)
	for i := 0; ; i++ {
		name := base + ".json"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.json", base, i)
		}
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create record: %w", err)
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write record: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to write record: %w", err)
		}
		return path, nil
	}
}

// Load reads one record
func (s *SuggestionStore) Load(path string) (review.Suggestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return review.Suggestion{}, fmt.Errorf("failed to read record: %w", err)
	}
	var sug review.Suggestion
	if err := json.Unmarshal(data, &sug); err != nil {
		return review.Suggestion{}, fmt.Errorf("failed to decode record %s: %w", filepath.Base(path), err)
	}
	return sug, nil
}

// List returns record paths, oldest first
func (s *SuggestionStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
