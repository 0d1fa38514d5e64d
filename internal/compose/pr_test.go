package compose

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePRReader struct {
	branch   string
	diff     string
	subjects []string
}

func (f *fakePRReader) CurrentBranch(_ context.Context) (string, error) { return f.branch, nil }
func (f *fakePRReader) DiffAgainst(_ context.Context, _ string) (string, error) {
	return f.diff, nil
}
func (f *fakePRReader) SubjectsSince(_ context.Context, _ string) ([]string, error) {
	return f.subjects, nil
}

func TestDescribe_BuildsDraft(t *testing.T) {
	client := &fakeLLM{reply: `# Add greeting output

## Summary
Prints a greeting on startup.

## Changes
- import fmt

## Testing
Ran it by hand.`}
	repo := &fakePRReader{
		branch:   "feature/greeting",
		diff:     sampleDiff,
		subjects: []string{"feat: add greeting"},
	}

	svc := NewPRService(repo, client, nil, nil)
	draft, err := svc.Describe(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, "Add greeting output", draft.Title)
	assert.Contains(t, draft.Markdown, "## Summary")

	assert.Contains(t, client.prompt, `"feature/greeting"`)
	assert.Contains(t, client.prompt, "feat: add greeting")
}

func TestDescribe_StripsWholeResponseFence(t *testing.T) {
	client := &fakeLLM{reply: "```markdown\n# Title here\n## Summary\nText.\n```"}
	repo := &fakePRReader{branch: "b", diff: sampleDiff}

	svc := NewPRService(repo, client, nil, nil)
	draft, err := svc.Describe(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, "Title here", draft.Title)
	assert.NotContains(t, draft.Markdown, "```")
}

func TestDescribe_NoChanges(t *testing.T) {
	svc := NewPRService(&fakePRReader{branch: "b"}, &fakeLLM{}, nil, nil)
	_, err := svc.Describe(context.Background(), "main")
	assert.ErrorIs(t, err, ErrNoBranchChanges)
}

func TestDescribe_TitleFallsBackToBranch(t *testing.T) {
	client := &fakeLLM{reply: "no headings at all"}
	svc := NewPRService(&fakePRReader{branch: "fix/thing", diff: sampleDiff}, client, nil, nil)

	draft, err := svc.Describe(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, "fix/thing", draft.Title)
}
