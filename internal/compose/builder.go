// Package compose turns repository state into LLM prompts and parses the
// results back into structured suggestions. Reviewer ranking is deterministic
// and never calls the model.
package compose

import (
	"context"
	"fmt"
	"strings"

	"sprout/internal/diffparse"
	"sprout/internal/store"
)

// Per-section byte budgets keep prompts inside model context limits.
const (
	diffBudget    = 12 * 1024
	similarBudget = 4 * 1024
	maxSimilar    = 5
)

// SimilarFinder retrieves past changes resembling a query.
type SimilarFinder interface {
	Search(ctx context.Context, query string, k int) ([]store.ScoredChange, error)
}

// Builder assembles prompts from diffs, file lists, and retrieved history.
type Builder struct{}

// CommitSystemPrompt is the system instruction for commit message drafting.
func (Builder) CommitSystemPrompt() string {
	return `You are an expert software engineer writing git commit messages.
Follow the Conventional Commits style (type(scope): subject).
Subjects are imperative, lower case, and at most 72 characters.
Respond with a JSON array only, no prose and no code fences. Each element:
{"title": "...", "body": "...", "rationale": "..."}
The body may be empty for trivial changes. The rationale explains in one
sentence why this framing fits the change.`
}

// CommitPrompt renders the user prompt for n commit message candidates.
func (Builder) CommitPrompt(diff string, files []string, similar []store.ScoredChange, n int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Propose %d commit message candidates for the staged changes below.\n\n", n)
	fmt.Fprintf(&b, "Change summary: %s\n", diffparse.Summary(diff))
	if len(files) > 0 {
		fmt.Fprintf(&b, "Files: %s\n", strings.Join(files, ", "))
	}

	if block := formatSimilar(similar); block != "" {
		b.WriteString("\nPast commits in this repository that touched similar code,\n")
		b.WriteString("use them to match the project's conventions:\n")
		b.WriteString(block)
	}

	b.WriteString("\nStaged diff:\n```diff\n")
	b.WriteString(diffparse.Truncate(diff, diffBudget))
	b.WriteString("\n```\n")

	return b.String()
}

// PRSystemPrompt is the system instruction for pull request drafting.
func (Builder) PRSystemPrompt() string {
	return `You are an expert software engineer writing pull request descriptions.
Respond with GitHub-flavored markdown only, no code fences around the whole
response. Structure:
# <title, imperative, under 72 characters>
## Summary
<one or two sentences on what the change does and why>
## Changes
<bullet list of the notable changes>
## Testing
<how this was or should be verified>`
}

// PRPrompt renders the user prompt for a pull request description.
func (Builder) PRPrompt(branch, base string, subjects []string, diff string, similar []store.ScoredChange) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a pull request description for branch %q against %q.\n\n", branch, base)
	fmt.Fprintf(&b, "Change summary: %s\n", diffparse.Summary(diff))

	if len(subjects) > 0 {
		b.WriteString("\nCommits on this branch:\n")
		for _, s := range subjects {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	if block := formatSimilar(similar); block != "" {
		b.WriteString("\nRelated past changes for context:\n")
		b.WriteString(block)
	}

	b.WriteString("\nFull diff:\n```diff\n")
	b.WriteString(diffparse.Truncate(diff, diffBudget))
	b.WriteString("\n```\n")

	return b.String()
}

// formatSimilar renders retrieved changes as a compact context block, capped
// by maxSimilar and similarBudget.
func formatSimilar(similar []store.ScoredChange) string {
	if len(similar) == 0 {
		return ""
	}
	if len(similar) > maxSimilar {
		similar = similar[:maxSimilar]
	}

	var b strings.Builder
	for _, sc := range similar {
		entry := fmt.Sprintf("- %s (%s", sc.Subject, sc.Summary)
		if len(sc.Files) > 0 {
			entry += "; " + strings.Join(sc.Files, ", ")
		}
		entry += ")\n"
		if b.Len()+len(entry) > similarBudget {
			break
		}
		b.WriteString(entry)
	}
	return b.String()
}
