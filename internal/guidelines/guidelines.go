// Package guidelines reads a repository's own coding rules so they can be
// passed to the model with each prompt.
package guidelines

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// File is one guideline document found in a repository
type File struct {
	Path     string
	Kind     string // copilot, cursor, codebrew, contributing
	Sections []Section
}

// Section is the text under one markdown heading
type Section struct {
	Title string
	Level int
	Body  string
}

// Known lists the documents checked, in the order their rules are used
var Known = []struct {
	Path string
	Kind string
}{
	{".codebrew.md", "codebrew"},
	{".github/copilot-instructions.md", "copilot"},
	{".cursorrules", "cursor"},
	{".cursor/rules", "cursor"},
	{"CONTRIBUTING.md", "contributing"},
	{".github/CONTRIBUTING.md", "contributing"},
	{"docs/CONTRIBUTING.md", "contributing"},
}

// MaxRules caps how many rules reach the prompt
const MaxRules = 20

// Read returns the guideline documents present under root. Missing files are
// skipped; any other read error is returned.
func Read(ctx context.Context, root string) ([]File, error) {
	var files []File
	for _, k := range Known {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := filepath.Join(root, filepath.FromSlash(k.Path))
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || isDir(p) {
				continue
			}
			return nil, err
		}

		f := File{Path: p, Kind: k.Kind}
		if strings.HasSuffix(k.Path, ".md") {
			f.Sections = sections(string(data))
		} else {
			f.Sections = []Section{{Title: "Rules", Level: 1, Body: string(data)}}
		}
		files = append(files, f)
	}
	return files, nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func sections(content string) []Section {
	var out []Section
	var cur *Section
	var body strings.Builder

	flush := func() {
		if cur != nil {
			cur.Body = strings.TrimSpace(body.String())
			out = append(out, *cur)
			body.Reset()
		}
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
			cur = &Section{Title: strings.TrimSpace(trimmed[level:]), Level: level}
			continue
		}
		if cur != nil {
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	flush()
	return out
}

var ruleTitles = []string{
	"rule", "convention", "practice", "guideline", "principle", "pattern",
	"style", "requirement", "must", "should", "standard", "code quality",
}

// Rules extracts list items from sections whose title reads like a rule
// heading. Plain-text documents contribute every list item. Duplicates are
// dropped and at most MaxRules are returned.
func Rules(files []File) []string {
	seen := make(map[string]bool)
	var rules []string
	for _, f := range files {
		for _, s := range f.Sections {
			if f.Kind != "cursor" && !isRuleTitle(s.Title) {
				continue
			}
			for _, r := range listItems(s.Body) {
				key := strings.ToLower(r)
				if seen[key] {
					continue
				}
				seen[key] = true
				rules = append(rules, r)
				if len(rules) == MaxRules {
					return rules
				}
			}
		}
	}
	return rules
}

func isRuleTitle(title string) bool {
	t := strings.ToLower(title)
	for _, w := range ruleTitles {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}

func listItems(body string) []string {
	var items []string
	for _, line := range strings.Split(body, "\n") {
		item, ok := listItem(strings.TrimSpace(line))
		if ok && len(item) > 10 {
			items = append(items, item)
		}
	}
	return items
}

func listItem(line string) (string, bool) {
	for _, bullet := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, bullet) {
			return strings.TrimSpace(line[len(bullet):]), true
		}
	}
	// "1. item" through "99. item"
	if dot := strings.IndexByte(line, '.'); dot > 0 && dot < 3 {
		for _, c := range line[:dot] {
			if c < '0' || c > '9' {
				return "", false
			}
		}
		return strings.TrimSpace(line[dot+1:]), true
	}
	return "", false
}

// Instructions renders the repository's rules as a prompt paragraph, or ""
// when root has none.
func Instructions(ctx context.Context, root string) (string, error) {
	files, err := Read(ctx, root)
	if err != nil {
		return "", err
	}
	rules := Rules(files)
	if len(rules) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("The repository defines these coding rules; the suggested change must follow them:\n")
	for _, r := range rules {
		sb.WriteString("- ")
		sb.WriteString(r)
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
