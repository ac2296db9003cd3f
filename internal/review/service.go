package review

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"codebrew/internal/llm"
)

// Options tunes the orchestrator. Use DefaultOptions and override fields.
type Options struct {
	// MaxAttempts bounds the prompt/invoke/normalize/validate cycle
	MaxAttempts int
	// RetryTransport enables retries with exponential backoff on transport errors
	RetryTransport   bool
	TransportBackoff time.Duration

	MaxTokens     int
	Temperature   float64
	StopSequences []string
	Model         string

	// Instructions are appended to every prompt
	Instructions string
}

// DefaultOptions returns three attempts, no transport retry, and the
// generation budget the tool has always used.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:      3,
		TransportBackoff: 2 * time.Second,
		MaxTokens:        llm.DefaultMaxTokens,
		Temperature:      llm.DefaultTemperature,
	}
}

// Service runs the suggestion pipeline against a model invoker. It holds no
// per-call state, so one Service may serve concurrent callers.
type Service struct {
	invoker llm.Invoker
	opts    Options
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewService creates a new analysis service
func NewService(invoker llm.Invoker, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = llm.DefaultMaxTokens
	}
	return &Service{
		invoker: invoker,
		opts:    opts,
		sleep:   sleepContext,
	}
}

// Analyze asks the model for the single most impactful change in one file
func (s *Service) Analyze(ctx context.Context, artifact SourceArtifact, schema Schema) (*Result, error) {
	var suggestion Suggestion

	out, err := s.run(ctx, artifact.Label(),
		func(opts PromptOptions) string { return BuildPrompt(artifact, schema, opts) },
		func(raw string) error {
			parsed, err := Normalize(raw)
			if err != nil {
				return err
			}
			suggestion, err = Validate(parsed.Value, schema)
			return err
		},
	)
	if err != nil {
		return nil, err
	}

	return &Result{
		Suggestion: withArtifactDefaults(suggestion, artifact),
		Attempts:   out.attempts,
		Raw:        out.raw,
		StopReason: out.stopReason,
	}, nil
}

// AnalyzeBatch sends all artifacts in one prompt. In per-file mode invalid
// entries are recorded as failures next to the valid ones; in single-best
// mode a validation failure fails the whole call.
func (s *Service) AnalyzeBatch(ctx context.Context, artifacts []SourceArtifact, mode BatchMode, schema Schema) (*BatchResult, error) {
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("analyze batch: no files given")
	}
	label := fmt.Sprintf("batch of %d files (%s)", len(artifacts), mode)
	render := func(opts PromptOptions) string { return BuildBatchPrompt(artifacts, mode, schema, opts) }

	switch mode {
	case BatchSingleBest:
		var best Suggestion
		out, err := s.run(ctx, label, render, func(raw string) error {
			parsed, err := Normalize(raw)
			if err != nil {
				return err
			}
			best, err = Validate(parsed.Value, schema)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(artifacts) == 1 {
			best = withArtifactDefaults(best, artifacts[0])
		}
		return &BatchResult{Mode: mode, Best: &best, Attempts: out.attempts, Raw: out.raw}, nil

	case BatchPerFile:
		var set *BatchSuggestionSet
		out, err := s.run(ctx, label, render, func(raw string) error {
			parsed, err := Normalize(raw)
			if err != nil {
				return err
			}
			set, err = collectEntries(parsed.Value, artifacts, schema)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(set.Failures) > 0 {
			log.Printf("Warning: %d of %d files produced no valid suggestion", len(set.Failures), len(artifacts))
		}
		return &BatchResult{Mode: mode, Set: set, Attempts: out.attempts, Raw: out.raw}, nil

	default:
		return nil, fmt.Errorf("analyze batch: unknown mode %q", mode)
	}
}

type runOutcome struct {
	attempts   int
	raw        string
	stopReason string
}

// run is the retry boundary. Each attempt renders a fresh prompt, invokes
// the model once and hands the text to accept. Only contract failures from
// accept, and transport failures when enabled, lead to another attempt.
func (s *Service) run(ctx context.Context, label string, render func(PromptOptions) string, accept func(raw string) error) (runOutcome, error) {
	var (
		lastErr          error
		lastRaw          string
		reminder         string
		transportRetries int
	)

	attempt := 1
	for ; attempt <= s.opts.MaxAttempts; attempt++ {
		log.Printf("Analyzing %s (attempt %d/%d)", label, attempt, s.opts.MaxAttempts)

		prompt := render(PromptOptions{Reminder: reminder, Instructions: s.opts.Instructions})
		resp, err := s.invoker.Invoke(ctx, s.request(prompt))
		if err != nil {
			lastErr = err
			if !s.retryInvokeError(ctx, err, attempt) {
				break
			}
			delay := s.opts.TransportBackoff << transportRetries
			transportRetries++
			log.Printf("Warning: %s attempt %d/%d failed, retrying in %s: %v", label, attempt, s.opts.MaxAttempts, delay, err)
			if err := s.sleep(ctx, delay); err != nil {
				lastErr = &llm.TransportError{Provider: "orchestrator", Cause: err}
				break
			}
			continue
		}

		lastRaw = resp.Text
		if err := accept(resp.Text); err != nil {
			lastErr = err
			if !recoverable(err) || attempt == s.opts.MaxAttempts {
				break
			}
			log.Printf("Warning: %s attempt %d/%d rejected, re-prompting: %v", label, attempt, s.opts.MaxAttempts, err)
			reminder = DefaultReminder
			continue
		}

		return runOutcome{attempts: attempt, raw: resp.Text, stopReason: resp.StopReason}, nil
	}

	if attempt > s.opts.MaxAttempts {
		attempt = s.opts.MaxAttempts
	}
	if lastRaw != "" {
		log.Printf("Analysis of %s failed after %d attempt(s): %v\nRaw model output:\n%s", label, attempt, lastErr, lastRaw)
	} else {
		log.Printf("Analysis of %s failed after %d attempt(s): %v", label, attempt, lastErr)
	}
	return runOutcome{}, &AnalysisError{Attempts: attempt, Raw: lastRaw, Err: lastErr}
}

// retryInvokeError decides whether an invoker failure earns another attempt
func (s *Service) retryInvokeError(ctx context.Context, err error, attempt int) bool {
	if attempt >= s.opts.MaxAttempts || !s.opts.RetryTransport {
		return false
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if llm.IsEmptyResponse(err) {
		return false
	}
	return llm.IsTransport(err)
}

func (s *Service) request(prompt string) llm.PromptRequest {
	return llm.PromptRequest{
		Prompt:        prompt,
		MaxTokens:     s.opts.MaxTokens,
		Temperature:   s.opts.Temperature,
		StopSequences: s.opts.StopSequences,
		Model:         s.opts.Model,
	}
}

// collectEntries validates each per-file entry independently. Only a missing
// or malformed analyses container is an error; bad entries become failures.
func collectEntries(value any, artifacts []SourceArtifact, schema Schema) (*BatchSuggestionSet, error) {
	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case map[string]any:
		raw, ok := v["analyses"]
		if !ok || raw == nil {
			return nil, &MissingFieldError{Fields: []string{"analyses"}}
		}
		arr, ok := raw.([]any)
		if !ok {
			return nil, &FieldTypeError{Field: "analyses", Detail: fmt.Sprintf("expected array, got %s", jsonKind(raw))}
		}
		items = arr
	default:
		return nil, &FieldTypeError{Field: "$", Detail: fmt.Sprintf("expected object or array, got %s", jsonKind(value))}
	}

	type checked struct {
		file       string
		idx        int
		suggestion Suggestion
		err        error
	}
	results := make([]checked, len(items))
	seen := make(map[int]bool)
	for i, item := range items {
		file, suggestion, err := ValidateEntry(item, schema)
		idx := matchArtifact(file, artifacts)
		if idx >= 0 {
			seen[idx] = true
		}
		results[i] = checked{file: file, idx: idx, suggestion: suggestion, err: err}
	}

	// an entry that names no file stands in for the next artifact nothing
	// else claimed, so that artifact reports one failure instead of two
	next := 0
	for i := range results {
		r := &results[i]
		if r.file != "" {
			continue
		}
		for next < len(artifacts) && seen[next] {
			next++
		}
		if next < len(artifacts) {
			r.idx = next
			r.file = artifacts[next].Label()
			seen[next] = true
		} else {
			r.file = fmt.Sprintf("entry %d", i+1)
		}
	}

	set := &BatchSuggestionSet{Entries: []BatchEntry{}}
	for _, r := range results {
		if r.err != nil {
			set.Failures = append(set.Failures, FileFailure{File: r.file, Err: r.err})
			continue
		}
		suggestion := r.suggestion
		if r.idx >= 0 {
			suggestion = withArtifactDefaults(suggestion, artifacts[r.idx])
		}
		set.Entries = append(set.Entries, BatchEntry{File: r.file, Suggestion: suggestion})
	}

	for i, a := range artifacts {
		if !seen[i] {
			set.Failures = append(set.Failures, FileFailure{File: a.Label(), Err: errNoEntry})
		}
	}
	return set, nil
}

var errNoEntry = errors.New("model returned no analysis for this file")

func matchArtifact(file string, artifacts []SourceArtifact) int {
	if file == "" {
		return -1
	}
	for i, a := range artifacts {
		if file == a.Label() || file == a.Path || file == a.Name {
			return i
		}
	}
	return -1
}

// withArtifactDefaults fills location fields the model left out. It only
// runs on suggestions that already passed validation.
func withArtifactDefaults(s Suggestion, a SourceArtifact) Suggestion {
	if s.RepoName == "" {
		s.RepoName = a.RepoName
	}
	if s.FilePath == "" {
		s.FilePath = a.Path
	}
	if s.FileName == "" {
		s.FileName = a.Name
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
