package review

import (
	"fmt"
	"strings"
)

// PromptOptions carries the optional parts of a prompt
type PromptOptions struct {
	// Reminder is appended on retries after the model broke the contract
	Reminder string
	// Instructions are extra caller requirements, e.g. "prefer stdlib only"
	Instructions string
}

// DefaultReminder is used by the orchestrator when re-prompting
const DefaultReminder = "Your previous answer could not be used. Reply with ONLY the JSON object described below: " +
	"no markdown fences, no prose before or after it, and every required field present and non-empty."

const jsonOnly = "Respond with ONLY the JSON, no additional text.\n"

var categories = []string{
	"performance (algorithmic complexity, redundant work)",
	"readability (naming, structure, simpler control flow)",
	"dead-code removal (unused variables, imports, branches)",
	"idiom cleanup (use the language's built-in constructs)",
	"query and import optimization",
}

var constraints = []string{
	"Preserve the exact indentation of the original code in old_code and new_code.",
	"Change only the lines that are necessary; do not reformat unrelated code.",
	"old_code must be copied verbatim from the file so it can be located and replaced.",
	fmt.Sprintf("commit_message is imperative and at most %d characters.", MaxCommitMessageLen),
}

// BuildPrompt renders the single-file prompt. The output is deterministic for
// identical inputs.
func BuildPrompt(artifact SourceArtifact, schema Schema, opts PromptOptions) string {
	var sb strings.Builder

	sb.WriteString("You are a senior code reviewer.\n\n")
	sb.WriteString("Analyze the following code and identify the single most impactful change that would improve it.\n\n")
	writeList(&sb, "Improvement categories", categories)
	writeList(&sb, "Constraints", constraints)

	sb.WriteString("## Code\n")
	if artifact.RepoName != "" {
		sb.WriteString(fmt.Sprintf("Repository: %s\n", artifact.RepoName))
	}
	if artifact.Path != "" {
		sb.WriteString(fmt.Sprintf("Path: %s\n", artifact.Path))
	}
	if artifact.Name != "" {
		sb.WriteString(fmt.Sprintf("File name: %s\n", artifact.Name))
	}
	sb.WriteString("\n")
	sb.WriteString(artifact.Content)
	sb.WriteString("\n\n")

	writeInstructions(&sb, opts.Instructions)
	writeReminder(&sb, opts.Reminder)

	// schema and examples always close the prompt
	sb.WriteString("## Response Format\n")
	sb.WriteString(jsonOnly)
	sb.WriteString("Return exactly one JSON object with this schema:\n")
	sb.WriteString(schema.describe())
	sb.WriteString("\n\n")
	writeExamples(&sb, schema.Examples, "")

	return sb.String()
}

// BuildBatchPrompt renders several files into one prompt. The mode is always
// chosen by the caller.
func BuildBatchPrompt(artifacts []SourceArtifact, mode BatchMode, schema Schema, opts PromptOptions) string {
	var sb strings.Builder

	sb.WriteString("You are a senior code reviewer.\n\n")
	switch mode {
	case BatchSingleBest:
		sb.WriteString(fmt.Sprintf("Analyze the following %d files and identify the single highest-impact change across all of them.\n\n", len(artifacts)))
	default:
		sb.WriteString(fmt.Sprintf("Analyze each of the following %d files and identify the single most impactful change in each file.\n\n", len(artifacts)))
	}
	writeList(&sb, "Improvement categories", categories)
	writeList(&sb, "Constraints", constraints)

	sb.WriteString("## Files\n")
	for _, a := range artifacts {
		sb.WriteString(fmt.Sprintf("File: %s\nPath: %s\n\n", a.Label(), a.Path))
		sb.WriteString(a.Content)
		sb.WriteString("\n\n---\n\n")
	}

	writeInstructions(&sb, opts.Instructions)
	writeReminder(&sb, opts.Reminder)

	sb.WriteString("## Response Format\n")
	sb.WriteString(jsonOnly)
	switch mode {
	case BatchSingleBest:
		sb.WriteString("Return exactly one JSON object with this schema, describing the best change found in any file. ")
		sb.WriteString("Set file_path to the path of the file it applies to.\n")
		sb.WriteString(schema.describe())
		sb.WriteString("\n\n")
		writeExamples(&sb, schema.Examples, "")
	default:
		sb.WriteString(`Return a JSON object {"analyses": [...]} with one entry per file, in the order the files are listed above. `)
		sb.WriteString(`Each entry has a "file" key holding the file name exactly as shown after "File:", plus the fields of this schema:` + "\n")
		sb.WriteString(schema.describe())
		sb.WriteString("\n\n")
		writeExamples(&sb, schema.Examples, "analyses")
	}

	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	sb.WriteString("## " + title + "\n")
	for _, item := range items {
		sb.WriteString("- " + item + "\n")
	}
	sb.WriteString("\n")
}

func writeInstructions(sb *strings.Builder, instructions string) {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return
	}
	sb.WriteString("## Additional Instructions\n")
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
}

// writeExamples renders worked examples. With wrapKey set each example is
// shown as a batch entry inside {"<wrapKey>": [...]}.
func writeExamples(sb *strings.Builder, examples []string, wrapKey string) {
	for i, ex := range examples {
		sb.WriteString(fmt.Sprintf("Example %d:\n", i+1))
		if wrapKey == "" {
			sb.WriteString(ex)
		} else {
			entry := strings.Replace(ex, "{\n", "{\n  \"file\": \"example.py\",\n", 1)
			sb.WriteString(fmt.Sprintf("{\"%s\": [\n%s\n]}", wrapKey, entry))
		}
		sb.WriteString("\n\n")
	}
}

func writeReminder(sb *strings.Builder, reminder string) {
	if reminder == "" {
		return
	}
	sb.WriteString("IMPORTANT: ")
	sb.WriteString(reminder)
	sb.WriteString("\n\n")
}
