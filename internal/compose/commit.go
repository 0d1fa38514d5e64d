package compose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sprout/internal/llm"
	"sprout/internal/store"
)

// ErrNothingStaged indicates the staged diff is empty so there is nothing to
// describe.
var ErrNothingStaged = errors.New("no staged changes: stage files with 'git add' or rerun with --all")

// Suggestion is one candidate commit message.
type Suggestion struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Rationale string `json:"rationale"`
}

// Message renders the suggestion as a full commit message.
func (s Suggestion) Message() string {
	if strings.TrimSpace(s.Body) == "" {
		return s.Title
	}
	return s.Title + "\n\n" + s.Body
}

// CommitReader is the slice of gitrepo.Repo the commit service needs.
type CommitReader interface {
	StagedDiff(ctx context.Context) (string, error)
	ChangedFiles(ctx context.Context) ([]string, error)
}

// CommitService drafts commit messages for the staged changes.
type CommitService struct {
	repo    CommitReader
	client  llm.Client
	similar SimilarFinder
	builder Builder
	logger  *zap.Logger
}

// NewCommitService creates a CommitService. similar may be nil, in which case
// suggestions are drafted without retrieved context.
func NewCommitService(repo CommitReader, client llm.Client, similar SimilarFinder, logger *zap.Logger) *CommitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommitService{repo: repo, client: client, similar: similar, logger: logger}
}

// Suggest asks the model for n candidate commit messages for the staged diff.
func (s *CommitService) Suggest(ctx context.Context, n int) ([]Suggestion, error) {
	if n <= 0 {
		n = 3
	}

	diff, err := s.repo.StagedDiff(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(diff) == "" {
		return nil, ErrNothingStaged
	}

	files, err := s.repo.ChangedFiles(ctx)
	if err != nil {
		s.logger.Debug("failed to list changed files", zap.Error(err))
	}

	similar := s.retrieve(ctx, diff)

	prompt := s.builder.CommitPrompt(diff, files, similar, n)
	raw, err := s.client.CompleteWithSystem(ctx, s.builder.CommitSystemPrompt(), prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate commit messages: %w", err)
	}

	suggestions, err := parseSuggestions(raw)
	if err != nil {
		return nil, err
	}
	if len(suggestions) > n {
		suggestions = suggestions[:n]
	}
	return suggestions, nil
}

// retrieve is best-effort: a cold store or unreachable embedding engine must
// not block drafting.
func (s *CommitService) retrieve(ctx context.Context, diff string) []store.ScoredChange {
	if s.similar == nil {
		return nil
	}
	results, err := s.similar.Search(ctx, diff, maxSimilar)
	if err != nil {
		s.logger.Debug("similarity retrieval unavailable", zap.Error(err))
		return nil
	}
	return results
}

// parseSuggestions extracts a JSON array of suggestions from a model reply,
// tolerating code fences and surrounding prose.
func parseSuggestions(raw string) ([]Suggestion, error) {
	text := stripFences(raw)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("model reply contains no JSON array: %s", firstLine(raw))
	}

	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(text[start:end+1]), &suggestions); err != nil {
		return nil, fmt.Errorf("failed to parse model reply: %w", err)
	}

	out := suggestions[:0]
	for _, sg := range suggestions {
		if strings.TrimSpace(sg.Title) != "" {
			out = append(out, sg)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("model returned no usable suggestions")
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i != -1 {
		s = s[i+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "\n"); i != -1 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
