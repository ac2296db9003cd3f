package review

import (
	"fmt"
	"strings"
)

// SchemaVersion identifies a revision of the suggestion output contract
type SchemaVersion string

const (
	SchemaMinimal  SchemaVersion = "minimal"
	SchemaExtended SchemaVersion = "extended"
)

// Field describes one key of the suggestion JSON object
type Field struct {
	Name        string
	Type        string // JSON Schema type name; "benefit" accepts string or object
	Description string
}

// Schema is the contract threaded through prompt building and validation.
// Required is explicit so that callers pick the revision they prompted for.
type Schema struct {
	Version  SchemaVersion
	Fields   []Field
	Required []string
	Examples []string
}

var minimalFields = []Field{
	{Name: "issue", Type: "string", Description: "what needs to be improved"},
	{Name: "old_code", Type: "string", Description: "the original code block, copied exactly"},
	{Name: "new_code", Type: "string", Description: "the improved version, same indentation"},
	{Name: "benefit", Type: "benefit", Description: "e.g. 30% speedup, cleaner, or removes dead code"},
	{Name: "commit_message", Type: "string", Description: fmt.Sprintf("short imperative commit message, at most %d characters", MaxCommitMessageLen)},
}

var extendedFields = append(append([]Field{}, minimalFields...),
	Field{Name: "repo_name", Type: "string", Description: "repository name"},
	Field{Name: "file_path", Type: "string", Description: "path of the file inside the repository"},
	Field{Name: "file_name", Type: "string", Description: "base name of the file"},
	Field{Name: "start_line", Type: "integer", Description: "first line (1-based) of old_code in the file"},
	Field{Name: "end_line", Type: "integer", Description: "last line (1-based, inclusive) of old_code in the file"},
	Field{Name: "branch_name", Type: "string", Description: "git branch name for the change, kebab-case"},
)

const minimalExample = `{
  "issue": "Nested loops make duplicate detection quadratic",
  "old_code": "    for i in range(len(items)):\n        for j in range(i + 1, len(items)):\n            if items[i] == items[j]:\n                duplicates.append(items[i])",
  "new_code": "    seen = set()\n    for item in items:\n        if item in seen:\n            duplicates.append(item)\n        seen.add(item)",
  "benefit": "O(n^2) -> O(n), roughly 30% faster on small inputs",
  "commit_message": "Use set lookup for duplicate detection"
}`

const extendedExample = `{
  "issue": "File handle is never closed on error",
  "old_code": "    f = open(path)\n    data = f.read()\n    f.close()",
  "new_code": "    with open(path) as f:\n        data = f.read()",
  "benefit": {
    "performance_gain": "no leaked descriptors under load",
    "complexity_before": "O(1)",
    "complexity_after": "O(1)",
    "explanation": "the context manager closes the file even when read() raises"
  },
  "commit_message": "Close file with context manager",
  "repo_name": "acme/tools",
  "file_path": "tools/io_utils.py",
  "file_name": "io_utils.py",
  "start_line": 12,
  "end_line": 14,
  "branch_name": "fix/close-file-handle"
}`

// MinimalSchema is the original five-field contract with a string benefit
func MinimalSchema() Schema {
	return Schema{
		Version:  SchemaMinimal,
		Fields:   minimalFields,
		Required: []string{"issue", "old_code", "new_code", "benefit", "commit_message"},
		Examples: []string{minimalExample},
	}
}

// ExtendedSchema adds file location, line range and branch fields
func ExtendedSchema() Schema {
	return Schema{
		Version: SchemaExtended,
		Fields:  extendedFields,
		Required: []string{
			"issue", "old_code", "new_code", "benefit", "commit_message",
			"file_path", "start_line", "end_line", "branch_name",
		},
		Examples: []string{extendedExample, minimalExample},
	}
}

// SchemaFor resolves a version name. Unknown names are an error rather than
// a silent fallback.
func SchemaFor(version string) (Schema, error) {
	switch SchemaVersion(strings.ToLower(strings.TrimSpace(version))) {
	case SchemaMinimal, "":
		return MinimalSchema(), nil
	case SchemaExtended:
		return ExtendedSchema(), nil
	default:
		return Schema{}, fmt.Errorf("unknown schema version %q", version)
	}
}

// WithRequired returns a copy of the schema with extra required fields
// appended, skipping ones already present.
func (s Schema) WithRequired(fields ...string) Schema {
	out := s
	out.Required = append([]string{}, s.Required...)
	for _, f := range fields {
		if !out.requires(f) {
			out.Required = append(out.Required, f)
		}
	}
	return out
}

func (s Schema) requires(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

func (s Schema) field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// describe renders the literal output schema block used at the end of prompts
func (s Schema) describe() string {
	var sb strings.Builder
	sb.WriteString("{\n")
	for i, f := range s.Fields {
		typ := f.Type
		if typ == "benefit" {
			typ = "string | {performance_gain, complexity_before, complexity_after, explanation}"
		}
		req := "optional"
		if s.requires(f.Name) {
			req = "required"
		}
		sb.WriteString(fmt.Sprintf("  %q: %s (%s) - %s", f.Name, typ, req, f.Description))
		if i < len(s.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String()
}
