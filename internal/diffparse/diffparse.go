// Package diffparse turns raw `git diff` output into structured per-file
// changes and human-readable summaries.
package diffparse

import (
	"fmt"
	"regexp"
	"strings"
)

// FileChange represents the parsed changes to a single file.
type FileChange struct {
	Path      string
	Additions []string
	Deletions []string
}

// ChangeSummary returns a short "+N, -M" summary for the file.
func (f FileChange) ChangeSummary() string {
	return fmt.Sprintf("+%d, -%d", len(f.Additions), len(f.Deletions))
}

var (
	pathPairRe = regexp.MustCompile(`a/(.*?)\s+b/`)
	pathNewRe  = regexp.MustCompile(`\+\+\+ b/(.*)`)
)

// Parse splits a unified diff into per-file changes. Empty or whitespace-only
// input yields nil.
func Parse(diff string) []FileChange {
	if strings.TrimSpace(diff) == "" {
		return nil
	}

	var files []FileChange
	for _, chunk := range strings.Split(diff, "\ndiff --git") {
		if strings.TrimSpace(chunk) == "" {
			continue
		}

		path := extractPath(chunk)
		if path == "" {
			continue
		}

		additions, deletions := extractChanges(chunk)
		files = append(files, FileChange{
			Path:      path,
			Additions: additions,
			Deletions: deletions,
		})
	}

	return files
}

// extractPath finds the file path in one diff chunk, preferring the
// "a/path b/path" header and falling back to "+++ b/path".
func extractPath(chunk string) string {
	if m := pathPairRe.FindStringSubmatch(chunk); m != nil {
		return m[1]
	}
	if m := pathNewRe.FindStringSubmatch(chunk); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractChanges collects added and removed lines, skipping the +++/--- file
// markers and @@ hunk headers.
func extractChanges(chunk string) (additions, deletions []string) {
	for _, line := range strings.Split(chunk, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			continue
		case strings.HasPrefix(line, "@@"):
			continue
		case strings.HasPrefix(line, "+"):
			additions = append(additions, strings.TrimSpace(line[1:]))
		case strings.HasPrefix(line, "-"):
			deletions = append(deletions, strings.TrimSpace(line[1:]))
		}
	}
	return additions, deletions
}

// Summary returns a one-line description like
// "3 file(s) changed: 12 addition(s), 5 deletion(s)".
func Summary(diff string) string {
	files := Parse(diff)
	if len(files) == 0 {
		return "No changes detected"
	}

	totalAdd, totalDel := 0, 0
	for _, f := range files {
		totalAdd += len(f.Additions)
		totalDel += len(f.Deletions)
	}

	return fmt.Sprintf("%d file(s) changed: %d addition(s), %d deletion(s)",
		len(files), totalAdd, totalDel)
}

// Truncate trims a diff to at most maxBytes, cutting on file boundaries so a
// prompt never contains half a file header. A truncation marker is appended
// when anything was dropped. maxBytes <= 0 returns the diff unchanged.
func Truncate(diff string, maxBytes int) string {
	if maxBytes <= 0 || len(diff) <= maxBytes {
		return diff
	}

	const marker = "\n... (diff truncated)"

	chunks := strings.Split(diff, "\ndiff --git")
	var b strings.Builder
	for i, chunk := range chunks {
		piece := chunk
		if i > 0 {
			piece = "\ndiff --git" + chunk
		}
		if b.Len()+len(piece) > maxBytes {
			break
		}
		b.WriteString(piece)
	}

	// A single oversized file chunk: hard cut.
	if b.Len() == 0 {
		return diff[:maxBytes] + marker
	}

	return b.String() + marker
}
