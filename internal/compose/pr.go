package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sprout/internal/llm"
	"sprout/internal/store"
)

// ErrNoBranchChanges indicates the branch has no commits or diff against the
// base.
var ErrNoBranchChanges = errors.New("no changes against the base branch")

// PRDraft is a generated pull request description.
type PRDraft struct {
	Title    string
	Markdown string
}

// PRReader is the slice of gitrepo.Repo the PR service needs.
type PRReader interface {
	CurrentBranch(ctx context.Context) (string, error)
	DiffAgainst(ctx context.Context, base string) (string, error)
	SubjectsSince(ctx context.Context, base string) ([]string, error)
}

// PRService drafts pull request descriptions for the current branch.
type PRService struct {
	repo    PRReader
	client  llm.Client
	similar SimilarFinder
	builder Builder
	logger  *zap.Logger
}

// NewPRService creates a PRService. similar may be nil.
func NewPRService(repo PRReader, client llm.Client, similar SimilarFinder, logger *zap.Logger) *PRService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PRService{repo: repo, client: client, similar: similar, logger: logger}
}

// Describe generates a markdown PR description for the branch against base.
func (s *PRService) Describe(ctx context.Context, base string) (*PRDraft, error) {
	branch, err := s.repo.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	diff, err := s.repo.DiffAgainst(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("failed to diff against %s: %w", base, err)
	}
	subjects, err := s.repo.SubjectsSince(ctx, base)
	if err != nil {
		s.logger.Debug("failed to list branch commits", zap.Error(err))
	}
	if strings.TrimSpace(diff) == "" && len(subjects) == 0 {
		return nil, ErrNoBranchChanges
	}

	var similar []store.ScoredChange
	if s.similar != nil {
		similar, err = s.similar.Search(ctx, diff, maxSimilar)
		if err != nil {
			s.logger.Debug("similarity retrieval unavailable", zap.Error(err))
		}
	}

	prompt := s.builder.PRPrompt(branch, base, subjects, diff, similar)
	raw, err := s.client.CompleteWithSystem(ctx, s.builder.PRSystemPrompt(), prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PR description: %w", err)
	}

	markdown := stripFences(raw)
	return &PRDraft{
		Title:    extractTitle(markdown, branch),
		Markdown: markdown,
	}, nil
}

// extractTitle takes the first markdown heading, falling back to the branch
// name.
func extractTitle(markdown, fallback string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
	}
	return fallback
}
