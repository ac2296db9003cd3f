// Package scan walks a directory or repository and runs the single-file
// pipeline on every matching file, continuing past per-file failures.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log"

	"codebrew/internal/review"
)

// Source fetches and lists artifacts
type Source interface {
	Fetch(ctx context.Context, id string) (review.SourceArtifact, error)
	List(ctx context.Context, id, ext string) ([]string, error)
}

// Analyzer is the single-file pipeline
type Analyzer interface {
	Analyze(ctx context.Context, artifact review.SourceArtifact, schema review.Schema) (*review.Result, error)
}

// Recorder persists successful suggestions
type Recorder interface {
	Save(s review.Suggestion) (string, error)
}

// Request names what to scan. Files, when set, are fetched as given and
// Target is only used as a label.
type Request struct {
	Target    string   `json:"target"`
	Files     []string `json:"files,omitempty"`
	Extension string   `json:"extension,omitempty"`
}

// FileResult is the outcome for one file
type FileResult struct {
	ID         string             `json:"id"`
	Suggestion *review.Suggestion `json:"suggestion,omitempty"`
	Record     string             `json:"record,omitempty"`
	Attempts   int                `json:"attempts,omitempty"`
	Error      string             `json:"error,omitempty"`
	Raw        string             `json:"raw,omitempty"`
}

// OK reports whether the file produced a suggestion
func (r FileResult) OK() bool {
	return r.Suggestion != nil
}

// Report collects the results of a walk in listing order
type Report struct {
	Target    string       `json:"target"`
	Files     []FileResult `json:"files"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// Service runs walks
type Service struct {
	source    Source
	analyzer  Analyzer
	records   Recorder
	schema    review.Schema
	extension string
}

// NewService creates a scanner. records may be nil.
func NewService(src Source, analyzer Analyzer, records Recorder, schema review.Schema, extension string) *Service {
	if extension == "" {
		extension = ".py"
	}
	return &Service{
		source:    src,
		analyzer:  analyzer,
		records:   records,
		schema:    schema,
		extension: extension,
	}
}

// Run analyzes every file of req. onFile, if not nil, is called after each
// file. Listing errors and cancellation end the walk; the partial report is
// returned with the error.
func (s *Service) Run(ctx context.Context, req Request, onFile func(FileResult)) (Report, error) {
	report := Report{Target: req.Target}

	ids := req.Files
	if len(ids) == 0 {
		if req.Target == "" {
			return report, fmt.Errorf("scan: target is required")
		}
		ext := req.Extension
		if ext == "" {
			ext = s.extension
		}
		listed, err := s.source.List(ctx, req.Target, ext)
		if err != nil {
			return report, fmt.Errorf("list %s: %w", req.Target, err)
		}
		ids = listed
	}

	log.Printf("Scanning %d file(s) in %s", len(ids), req.Target)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res := s.analyzeOne(ctx, id)
		if res.OK() {
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.Files = append(report.Files, res)
		if onFile != nil {
			onFile(res)
		}
	}

	log.Printf("Scan of %s finished: %d succeeded, %d failed", req.Target, report.Succeeded, report.Failed)
	return report, nil
}

func (s *Service) analyzeOne(ctx context.Context, id string) FileResult {
	res := FileResult{ID: id}

	artifact, err := s.source.Fetch(ctx, id)
	if err != nil {
		log.Printf("Warning: skipping %s: %v", id, err)
		res.Error = err.Error()
		return res
	}

	result, err := s.analyzer.Analyze(ctx, artifact, s.schema)
	if err != nil {
		log.Printf("Warning: no suggestion for %s: %v", id, err)
		res.Error = err.Error()
		res.Raw = review.RawResponse(err)
		var ae *review.AnalysisError
		if errors.As(err, &ae) {
			res.Attempts = ae.Attempts
		}
		return res
	}

	res.Suggestion = &result.Suggestion
	res.Attempts = result.Attempts
	if s.records != nil {
		path, err := s.records.Save(result.Suggestion)
		if err != nil {
			log.Printf("Warning: failed to save suggestion for %s: %v", id, err)
		} else {
			res.Record = path
		}
	}
	return res
}
