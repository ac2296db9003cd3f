package review

import (
	"encoding/json"
	"strings"
)

// MaxCommitMessageLen bounds the commit_message field of a suggestion
const MaxCommitMessageLen = 72

// SourceArtifact identifies one unit of code to review
type SourceArtifact struct {
	RepoName string
	Path     string
	Name     string
	Content  string
}

// Label returns the identifier used for the artifact in batch prompts and results
func (a SourceArtifact) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Path
}

// Benefit describes what a suggestion gains. Older schema revisions send a
// plain string (kept in Summary), newer ones a structured object.
type Benefit struct {
	Summary          string
	PerformanceGain  string
	ComplexityBefore string
	ComplexityAfter  string
	Explanation      string
	Extra            map[string]any
}

// IsStructured reports whether the benefit came from the object form
func (b Benefit) IsStructured() bool {
	return b.PerformanceGain != "" || b.ComplexityBefore != "" || b.ComplexityAfter != "" ||
		b.Explanation != "" || len(b.Extra) > 0
}

// String renders the benefit as a single line for commit bodies and logs
func (b Benefit) String() string {
	if !b.IsStructured() {
		return b.Summary
	}
	var parts []string
	if b.PerformanceGain != "" {
		parts = append(parts, b.PerformanceGain)
	}
	if b.ComplexityBefore != "" || b.ComplexityAfter != "" {
		parts = append(parts, b.ComplexityBefore+" -> "+b.ComplexityAfter)
	}
	if b.Explanation != "" {
		parts = append(parts, b.Explanation)
	}
	if len(parts) == 0 && b.Summary != "" {
		parts = append(parts, b.Summary)
	}
	return strings.Join(parts, "; ")
}

// MarshalJSON writes the plain-string form when the benefit was never structured
func (b Benefit) MarshalJSON() ([]byte, error) {
	if !b.IsStructured() {
		return json.Marshal(b.Summary)
	}
	out := make(map[string]any, len(b.Extra)+4)
	for k, v := range b.Extra {
		out[k] = v
	}
	if b.PerformanceGain != "" {
		out["performance_gain"] = b.PerformanceGain
	}
	if b.ComplexityBefore != "" {
		out["complexity_before"] = b.ComplexityBefore
	}
	if b.ComplexityAfter != "" {
		out["complexity_after"] = b.ComplexityAfter
	}
	if b.Explanation != "" {
		out["explanation"] = b.Explanation
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both the string and the object form
func (b *Benefit) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := benefitFromValue(v)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Suggestion is the validated output contract of the pipeline
type Suggestion struct {
	Issue         string  `json:"issue"`
	OldCode       string  `json:"old_code"`
	NewCode       string  `json:"new_code"`
	Benefit       Benefit `json:"benefit"`
	CommitMessage string  `json:"commit_message"`

	RepoName   string `json:"repo_name,omitempty"`
	FilePath   string `json:"file_path,omitempty"`
	FileName   string `json:"file_name,omitempty"`
	StartLine  int    `json:"start_line,omitempty"`
	EndLine    int    `json:"end_line,omitempty"`
	BranchName string `json:"branch_name,omitempty"`
}

// HasLineRange reports whether the suggestion can be applied as a patch
func (s Suggestion) HasLineRange() bool {
	return s.StartLine > 0 && s.EndLine >= s.StartLine
}

// BatchMode selects what a multi-file prompt asks the model for
type BatchMode string

const (
	BatchPerFile    BatchMode = "per_file"
	BatchSingleBest BatchMode = "single_best"
)

// ParseBatchMode converts user input into a BatchMode
func ParseBatchMode(s string) (BatchMode, bool) {
	switch BatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case BatchPerFile:
		return BatchPerFile, true
	case BatchSingleBest:
		return BatchSingleBest, true
	default:
		return "", false
	}
}

// BatchEntry is one validated per-file analysis
type BatchEntry struct {
	File       string     `json:"file"`
	Suggestion Suggestion `json:"suggestion"`
}

// FileFailure records why a file in a per-file batch produced no suggestion
type FileFailure struct {
	File string `json:"file"`
	Err  error  `json:"-"`
}

// Reason returns the failure text, for JSON responses and logs
func (f FileFailure) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// MarshalJSON includes the error text, which encoding/json would otherwise drop
func (f FileFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		File   string `json:"file"`
		Reason string `json:"reason"`
	}{File: f.File, Reason: f.Reason()})
}

// BatchSuggestionSet is the per-file batch outcome. Partial success is a
// valid terminal state: Entries and Failures may both be non-empty.
type BatchSuggestionSet struct {
	Entries  []BatchEntry  `json:"entries"`
	Failures []FileFailure `json:"failures,omitempty"`
}

// Result is the outcome of a single-suggestion analysis
type Result struct {
	Suggestion Suggestion `json:"suggestion"`
	Attempts   int        `json:"attempts"`
	Raw        string     `json:"raw,omitempty"`
	StopReason string     `json:"stop_reason,omitempty"`
}

// BatchResult is the outcome of a batch analysis. Exactly one of Set or
// Best is populated, depending on the mode.
type BatchResult struct {
	Mode     BatchMode           `json:"mode"`
	Set      *BatchSuggestionSet `json:"set,omitempty"`
	Best     *Suggestion         `json:"best,omitempty"`
	Attempts int                 `json:"attempts"`
	Raw      string              `json:"raw,omitempty"`
}
