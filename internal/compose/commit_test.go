package compose

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprout/internal/store"
)

const sampleDiff = `diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
 package main
+import "fmt"
`

type fakeLLM struct {
	reply  string
	err    error
	system string
	prompt string
	calls  int
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.reply, f.err
}

func (f *fakeLLM) CompleteWithSystem(_ context.Context, system, prompt string) (string, error) {
	f.calls++
	f.system = system
	f.prompt = prompt
	return f.reply, f.err
}

type fakeCommitReader struct {
	staged string
	files  []string
}

func (f *fakeCommitReader) StagedDiff(_ context.Context) (string, error) { return f.staged, nil }
func (f *fakeCommitReader) ChangedFiles(_ context.Context) ([]string, error) {
	return f.files, nil
}

type fakeFinder struct {
	results []store.ScoredChange
	err     error
}

func (f *fakeFinder) Search(_ context.Context, _ string, _ int) ([]store.ScoredChange, error) {
	return f.results, f.err
}

func TestSuggest_ParsesSuggestions(t *testing.T) {
	client := &fakeLLM{reply: `[
		{"title": "feat: add greeting", "body": "Prints hello.", "rationale": "New feature."},
		{"title": "chore: wire fmt", "body": "", "rationale": "Import only."}
	]`}
	repo := &fakeCommitReader{staged: sampleDiff, files: []string{"main.go"}}

	svc := NewCommitService(repo, client, nil, nil)
	got, err := svc.Suggest(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "feat: add greeting", got[0].Title)
	assert.Equal(t, "feat: add greeting\n\nPrints hello.", got[0].Message())
	assert.Equal(t, "chore: wire fmt", got[1].Message())

	assert.Contains(t, client.prompt, "main.go")
	assert.Contains(t, client.prompt, "1 file(s) changed")
	assert.Contains(t, client.system, "Conventional Commits")
}

func TestSuggest_StripsCodeFences(t *testing.T) {
	client := &fakeLLM{reply: "```json\n[{\"title\": \"fix: a\", \"body\": \"\", \"rationale\": \"r\"}]\n```"}
	svc := NewCommitService(&fakeCommitReader{staged: sampleDiff}, client, nil, nil)

	got, err := svc.Suggest(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fix: a", got[0].Title)
}

func TestSuggest_NothingStaged(t *testing.T) {
	svc := NewCommitService(&fakeCommitReader{staged: "  \n"}, &fakeLLM{}, nil, nil)
	_, err := svc.Suggest(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNothingStaged)
}

func TestSuggest_RetrievalIsBestEffort(t *testing.T) {
	client := &fakeLLM{reply: `[{"title": "fix: a", "body": "", "rationale": ""}]`}
	finder := &fakeFinder{err: errors.New("store offline")}

	svc := NewCommitService(&fakeCommitReader{staged: sampleDiff}, client, finder, nil)
	_, err := svc.Suggest(context.Background(), 1)
	assert.NoError(t, err)
}

func TestSuggest_SimilarChangesInPrompt(t *testing.T) {
	client := &fakeLLM{reply: `[{"title": "fix: a", "body": "", "rationale": ""}]`}
	finder := &fakeFinder{results: []store.ScoredChange{
		{Change: store.Change{Subject: "feat: earlier greeting", Summary: "+1, -0"}, Similarity: 0.8},
	}}

	svc := NewCommitService(&fakeCommitReader{staged: sampleDiff}, client, finder, nil)
	_, err := svc.Suggest(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, client.prompt, "feat: earlier greeting")
}

func TestSuggest_TruncatesToN(t *testing.T) {
	client := &fakeLLM{reply: `[
		{"title": "a", "body": "", "rationale": ""},
		{"title": "b", "body": "", "rationale": ""},
		{"title": "c", "body": "", "rationale": ""}
	]`}
	svc := NewCommitService(&fakeCommitReader{staged: sampleDiff}, client, nil, nil)

	got, err := svc.Suggest(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestParseSuggestions_Garbage(t *testing.T) {
	for _, raw := range []string{
		"I cannot help with that.",
		"[]",
		`[{"title": "  "}]`,
	} {
		_, err := parseSuggestions(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestParseSuggestions_ProseAroundArray(t *testing.T) {
	got, err := parseSuggestions(`Here are the options:
[{"title": "fix: b", "body": "", "rationale": ""}]
Let me know if you want more.`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fix: b", got[0].Title)
}

func TestFormatSimilar_RespectsBudget(t *testing.T) {
	long := strings.Repeat("x", similarBudget)
	block := formatSimilar([]store.ScoredChange{
		{Change: store.Change{Subject: "short one", Summary: "+1, -0"}},
		{Change: store.Change{Subject: long, Summary: "+1, -0"}},
	})
	assert.Contains(t, block, "short one")
	assert.NotContains(t, block, long)
}
