package compose

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"sprout/internal/config"
	"sprout/internal/gitrepo"
)

// ErrNoChanges indicates the working tree has no changed files to score
// reviewers against.
var ErrNoChanges = errors.New("no changed files: reviewer suggestions need working-tree changes")

// Reviewer is one scored reviewer candidate.
type Reviewer struct {
	Name      string
	Email     string
	Score     float64
	LastTouch time.Time
	Files     []string
}

// ReviewReader is the slice of gitrepo.Repo the reviewer service needs.
type ReviewReader interface {
	ChangedFiles(ctx context.Context) ([]string, error)
	FileLog(ctx context.Context, path string, limit int) ([]gitrepo.Touch, error)
	UserEmail(ctx context.Context) string
}

// ReviewerService ranks past authors of the changed files. Scoring is
// deterministic: each touch contributes 1/(1+ageDays/halfLife), so recent
// authorship outweighs volume from years ago.
type ReviewerService struct {
	repo   ReviewReader
	cfg    config.ReviewConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewReviewerService creates a ReviewerService.
func NewReviewerService(repo ReviewReader, cfg config.ReviewConfig, logger *zap.Logger) *ReviewerService {
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = 50
	}
	if cfg.RecencyHalfLifeDays <= 0 {
		cfg.RecencyHalfLifeDays = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewerService{repo: repo, cfg: cfg, logger: logger, now: time.Now}
}

// Suggest returns the top k reviewer candidates for the current changes. The
// configured git user is excluded; you cannot review your own change.
func (s *ReviewerService) Suggest(ctx context.Context, k int) ([]Reviewer, error) {
	if k <= 0 {
		k = 3
	}

	files, err := s.repo.ChangedFiles(ctx)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoChanges
	}

	self := strings.ToLower(s.repo.UserEmail(ctx))
	now := s.now()
	halfLife := float64(s.cfg.RecencyHalfLifeDays)

	type candidate struct {
		Reviewer
		fileSet map[string]struct{}
	}
	byEmail := make(map[string]*candidate)

	for _, path := range files {
		touches, err := s.repo.FileLog(ctx, path, s.cfg.HistoryDepth)
		if err != nil {
			s.logger.Debug("no history for file", zap.String("path", path), zap.Error(err))
			continue
		}
		for _, t := range touches {
			email := strings.ToLower(t.Email)
			if email == "" || email == self {
				continue
			}

			c := byEmail[email]
			if c == nil {
				c = &candidate{
					Reviewer: Reviewer{Name: t.Author, Email: t.Email},
					fileSet:  make(map[string]struct{}),
				}
				byEmail[email] = c
			}

			ageDays := now.Sub(t.When).Hours() / 24
			if ageDays < 0 {
				ageDays = 0
			}
			c.Score += 1 / (1 + ageDays/halfLife)
			if t.When.After(c.LastTouch) {
				c.LastTouch = t.When
			}
			c.fileSet[path] = struct{}{}
		}
	}

	reviewers := make([]Reviewer, 0, len(byEmail))
	for _, c := range byEmail {
		for f := range c.fileSet {
			c.Files = append(c.Files, f)
		}
		sort.Strings(c.Files)
		reviewers = append(reviewers, c.Reviewer)
	}

	sort.Slice(reviewers, func(i, j int) bool {
		if reviewers[i].Score != reviewers[j].Score {
			return reviewers[i].Score > reviewers[j].Score
		}
		if !reviewers[i].LastTouch.Equal(reviewers[j].LastTouch) {
			return reviewers[i].LastTouch.After(reviewers[j].LastTouch)
		}
		return reviewers[i].Name < reviewers[j].Name
	})

	if len(reviewers) > k {
		reviewers = reviewers[:k]
	}
	return reviewers, nil
}
