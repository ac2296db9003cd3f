// Package patch applies suggestions to file content and renders previews.
package patch

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

const contextLines = 3

// Apply replaces lines start..end (1-based, inclusive) with replacement.
// The trailing newline state of content is preserved.
func Apply(content string, start, end int, replacement string) (string, error) {
	lines, trailing := splitLines(content)
	if start < 1 || end < start {
		return "", fmt.Errorf("invalid line range %d-%d", start, end)
	}
	if end > len(lines) {
		return "", fmt.Errorf("line range %d-%d exceeds file length %d", start, end, len(lines))
	}

	repl, _ := splitLines(replacement)

	out := make([]string, 0, len(lines)-(end-start+1)+len(repl))
	out = append(out, lines[:start-1]...)
	out = append(out, repl...)
	out = append(out, lines[end:]...)

	result := strings.Join(out, "\n")
	if trailing && len(out) > 0 {
		result += "\n"
	}
	return result, nil
}

// Locate finds snippet in content and returns its line range. Leading and
// trailing blank lines of the snippet are ignored; the rest must match line
// by line after trimming trailing whitespace.
func Locate(content, snippet string) (start, end int, ok bool) {
	lines, _ := splitLines(content)
	return locateIn(lines, snippet, 1, len(lines))
}

// LocateWithin is Locate restricted to lines from..to (1-based, inclusive).
// The returned range is relative to the whole content.
func LocateWithin(content, snippet string, from, to int) (start, end int, ok bool) {
	lines, _ := splitLines(content)
	if from < 1 || to > len(lines) || from > to {
		return 0, 0, false
	}
	return locateIn(lines, snippet, from, to)
}

func locateIn(lines []string, snippet string, from, to int) (int, int, bool) {
	want, _ := splitLines(strings.Trim(snippet, "\n"))
	if len(want) == 0 || len(want) > to-from+1 {
		return 0, 0, false
	}

	for i := from - 1; i+len(want) <= to; i++ {
		match := true
		for j, w := range want {
			if strings.TrimRight(lines[i+j], " \t\r") != strings.TrimRight(w, " \t\r") {
				match = false
				break
			}
		}
		if match {
			return i + 1, i + len(want), true
		}
	}
	return 0, 0, false
}

// UnifiedDiff renders a single-hunk unified diff between before and after.
// It returns an empty string when the contents are equal.
func UnifiedDiff(path, before, after string) (string, error) {
	if before == after {
		return "", nil
	}

	a, _ := splitLines(before)
	b, _ := splitLines(after)

	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	lead := min(prefix, contextLines)
	tail := min(suffix, contextLines)

	origStart := prefix - lead
	origEnd := len(a) - suffix + tail
	newEnd := len(b) - suffix + tail

	var body strings.Builder
	for _, l := range a[origStart:prefix] {
		body.WriteString(" " + l + "\n")
	}
	for _, l := range a[prefix : len(a)-suffix] {
		body.WriteString("-" + l + "\n")
	}
	for _, l := range b[prefix : len(b)-suffix] {
		body.WriteString("+" + l + "\n")
	}
	for _, l := range a[len(a)-suffix : origEnd] {
		body.WriteString(" " + l + "\n")
	}

	hunk := &diff.Hunk{
		OrigStartLine: int32(origStart + 1),
		OrigLines:     int32(origEnd - origStart),
		NewStartLine:  int32(origStart + 1),
		NewLines:      int32(newEnd - origStart),
		Body:          []byte(body.String()),
	}
	// An empty side starts at line 0 in unified diff notation
	if hunk.OrigLines == 0 {
		hunk.OrigStartLine = int32(origStart)
	}
	if hunk.NewLines == 0 {
		hunk.NewStartLine = int32(origStart)
	}

	out, err := diff.PrintFileDiff(&diff.FileDiff{
		OrigName: "a/" + path,
		NewName:  "b/" + path,
		Hunks:    []*diff.Hunk{hunk},
	})
	if err != nil {
		return "", fmt.Errorf("print diff: %w", err)
	}
	return string(out), nil
}

// Stats counts changed lines the way the analytics log records them
func Stats(oldCode, newCode string) (optimized, removed int) {
	oldLines := countLines(oldCode)
	newLines := countLines(newCode)
	return min(oldLines, newLines), max(0, oldLines-newLines)
}

func countLines(s string) int {
	s = strings.Trim(s, "\n")
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func splitLines(s string) ([]string, bool) {
	if s == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n"), trailing
}
