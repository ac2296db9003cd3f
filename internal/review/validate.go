package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	compiledMu sync.Mutex
	compiled   = make(map[string]*jsonschema.Schema)
)

// Validate checks a normalized value against schema and builds a Suggestion.
// Every absent required field is reported at once. The input is not
// modified; defaults are never substituted for missing fields.
func Validate(value any, schema Schema) (Suggestion, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return Suggestion{}, &FieldTypeError{Field: "$", Detail: fmt.Sprintf("expected JSON object, got %s", jsonKind(value))}
	}

	if missing := missingFields(obj, schema.Required); len(missing) > 0 {
		return Suggestion{}, &MissingFieldError{Fields: missing}
	}

	if err := checkTypes(obj, schema); err != nil {
		return Suggestion{}, err
	}

	return buildSuggestion(obj)
}

// ValidateSuggestion re-checks a Suggestion that did not come straight
// from Validate, such as a saved record or a request body, by running its
// JSON form through Validate.
func ValidateSuggestion(s Suggestion, schema Schema) (Suggestion, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return Suggestion{}, fmt.Errorf("encode suggestion: %w", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return Suggestion{}, fmt.Errorf("decode suggestion: %w", err)
	}
	return Validate(obj, schema)
}

// ValidateEntry validates one element of a per-file batch response. The
// entry must carry a "file" key in addition to the schema's fields.
func ValidateEntry(value any, schema Schema) (string, Suggestion, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return "", Suggestion{}, &FieldTypeError{Field: "$", Detail: fmt.Sprintf("expected JSON object, got %s", jsonKind(value))}
	}
	file, _ := obj["file"].(string)
	s, err := Validate(obj, schema.WithRequired("file"))
	return file, s, err
}

func missingFields(obj map[string]any, required []string) []string {
	var missing []string
	for _, name := range required {
		if v, ok := obj[name]; !ok || blank(v) {
			missing = append(missing, name)
		}
	}
	return missing
}

// blank is true for null, whitespace-only strings and objects holding
// nothing but blank values, e.g. "benefit": {}
func blank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case map[string]any:
		for _, e := range x {
			if !blank(e) {
				return false
			}
		}
		return true
	}
	return false
}

func checkTypes(obj map[string]any, schema Schema) error {
	compiledSchema, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("compile suggestion schema: %w", err)
	}

	if err := compiledSchema.Validate(obj); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := leafCause(ve)
			return &FieldTypeError{Field: fieldFromLocation(leaf.InstanceLocation), Detail: leaf.Message}
		}
		return &FieldTypeError{Field: "$", Detail: err.Error()}
	}

	if start, end := intField(obj, "start_line"), intField(obj, "end_line"); start > 0 && end > 0 && end < start {
		return &FieldTypeError{Field: "end_line", Detail: fmt.Sprintf("end_line %d is before start_line %d", end, start)}
	}
	return nil
}

// compileSchema builds a JSON Schema covering field types only. Presence is
// checked separately so that all missing fields can be listed together.
func compileSchema(schema Schema) (*jsonschema.Schema, error) {
	var keys []string
	for _, f := range schema.Fields {
		keys = append(keys, f.Name+":"+f.Type)
	}
	key := string(schema.Version) + "|" + strings.Join(keys, ",")

	compiledMu.Lock()
	defer compiledMu.Unlock()
	if s, ok := compiled[key]; ok {
		return s, nil
	}

	props := make(map[string]any, len(schema.Fields)+1)
	for _, f := range schema.Fields {
		switch f.Type {
		case "benefit":
			props[f.Name] = map[string]any{"type": []string{"string", "object"}}
		case "integer":
			props[f.Name] = map[string]any{"type": "integer", "minimum": 1}
		default:
			props[f.Name] = map[string]any{"type": f.Type}
		}
	}
	props["commit_message"] = map[string]any{"type": "string", "maxLength": MaxCommitMessageLen}
	props["file"] = map[string]any{"type": "string"}

	doc, err := json.Marshal(map[string]any{"type": "object", "properties": props})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("suggestion-%s.json", schema.Version)
	s, err := jsonschema.CompileString(url, string(doc))
	if err != nil {
		return nil, err
	}
	compiled[key] = s
	return s, nil
}

func leafCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

func fieldFromLocation(loc string) string {
	loc = strings.TrimPrefix(loc, "/")
	if i := strings.IndexByte(loc, '/'); i >= 0 {
		loc = loc[:i]
	}
	if loc == "" {
		return "$"
	}
	return loc
}

func buildSuggestion(obj map[string]any) (Suggestion, error) {
	benefit, err := benefitFromValue(obj["benefit"])
	if err != nil {
		return Suggestion{}, &FieldTypeError{Field: "benefit", Detail: err.Error()}
	}

	return Suggestion{
		Issue:         stringField(obj, "issue"),
		OldCode:       stringField(obj, "old_code"),
		NewCode:       stringField(obj, "new_code"),
		Benefit:       benefit,
		CommitMessage: strings.TrimSpace(stringField(obj, "commit_message")),
		RepoName:      stringField(obj, "repo_name"),
		FilePath:      stringField(obj, "file_path"),
		FileName:      stringField(obj, "file_name"),
		StartLine:     intField(obj, "start_line"),
		EndLine:       intField(obj, "end_line"),
		BranchName:    stringField(obj, "branch_name"),
	}, nil
}

// benefitFromValue accepts the string and object forms of benefit
func benefitFromValue(v any) (Benefit, error) {
	switch b := v.(type) {
	case nil:
		return Benefit{}, nil
	case string:
		return Benefit{Summary: b}, nil
	case map[string]any:
		out := Benefit{}
		for k, val := range b {
			switch k {
			case "performance_gain":
				out.PerformanceGain = scalarString(val)
			case "complexity_before":
				out.ComplexityBefore = scalarString(val)
			case "complexity_after":
				out.ComplexityAfter = scalarString(val)
			case "explanation":
				out.Explanation = scalarString(val)
			default:
				if out.Extra == nil {
					out.Extra = make(map[string]any)
				}
				out.Extra[k] = val
			}
		}
		return out, nil
	default:
		return Benefit{}, fmt.Errorf("expected string or object, got %s", jsonKind(v))
	}
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func intField(obj map[string]any, key string) int {
	switch n := obj[key].(type) {
	case float64:
		if n == math.Trunc(n) {
			return int(n)
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return 0
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
