// Package indexer builds and queries the store of past changes. It walks git
// history, embeds one document per commit, and serves similarity searches for
// the working tree or an ad-hoc query.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sprout/internal/diffparse"
	"sprout/internal/embedding"
	"sprout/internal/gitrepo"
	"sprout/internal/store"
)

// ErrEmptyQuery indicates there was neither a query string nor working-tree
// changes to search with.
var ErrEmptyQuery = errors.New("nothing to search: no query given and the working tree is clean")

// History is the slice of gitrepo.Repo the indexer needs.
type History interface {
	Log(ctx context.Context, limit int) ([]gitrepo.Commit, error)
	CommitDiff(ctx context.Context, hash string) (string, error)
	CommitFiles(ctx context.Context, hash string) ([]string, error)
	AllChanges(ctx context.Context) (string, error)
}

// Store is the slice of store.ChangeStore the indexer needs.
type Store interface {
	Has(ctx context.Context, commitHash string) (bool, error)
	Put(ctx context.Context, c store.Change) error
	SearchSimilar(ctx context.Context, query []float32, k int) ([]store.ScoredChange, error)
	RecordIndexRun(ctx context.Context, id string, started, finished time.Time, indexed int) error
}

// Config tunes the indexing run.
type Config struct {
	MaxCommits  int
	BatchSize   int
	Parallelism int
}

func (c Config) withDefaults() Config {
	if c.MaxCommits <= 0 {
		c.MaxCommits = 500
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 4
	}
	return c
}

// Indexer embeds commit history into the change store.
type Indexer struct {
	repo   History
	store  Store
	engine embedding.Engine
	cfg    Config
	logger *zap.Logger
}

// New creates an Indexer. engine must embed with the document task type.
func New(repo History, st Store, engine embedding.Engine, cfg Config, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		repo:   repo,
		store:  st,
		engine: engine,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Index walks history and embeds commits that are not yet stored. Returns the
// number of newly indexed commits.
func (ix *Indexer) Index(ctx context.Context) (int, error) {
	if ix.engine == nil {
		return 0, fmt.Errorf("no embedding engine configured")
	}

	started := time.Now()

	commits, err := ix.repo.Log(ctx, ix.cfg.MaxCommits)
	if err != nil {
		return 0, fmt.Errorf("failed to read history: %w", err)
	}

	var pending []gitrepo.Commit
	for _, c := range commits {
		has, err := ix.store.Has(ctx, c.Hash)
		if err != nil {
			return 0, err
		}
		if !has {
			pending = append(pending, c)
		}
	}

	if len(pending) == 0 {
		ix.logger.Debug("index up to date", zap.Int("commits", len(commits)))
		return 0, nil
	}

	ix.logger.Info("indexing commits",
		zap.Int("pending", len(pending)),
		zap.Int("batch_size", ix.cfg.BatchSize))

	var (
		mu      sync.Mutex
		indexed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Parallelism)

	for start := 0; start < len(pending); start += ix.cfg.BatchSize {
		end := start + ix.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		g.Go(func() error {
			n, err := ix.indexBatch(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			indexed += n
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return indexed, err
	}

	runID := uuid.NewString()
	if err := ix.store.RecordIndexRun(ctx, runID, started, time.Now(), indexed); err != nil {
		ix.logger.Warn("failed to record index run", zap.Error(err))
	}

	ix.logger.Info("indexing complete",
		zap.String("run_id", runID),
		zap.Int("indexed", indexed),
		zap.Duration("elapsed", time.Since(started)))

	return indexed, nil
}

func (ix *Indexer) indexBatch(ctx context.Context, batch []gitrepo.Commit) (int, error) {
	docs := make([]string, len(batch))
	files := make([][]string, len(batch))
	summaries := make([]string, len(batch))

	for i, c := range batch {
		diff, err := ix.repo.CommitDiff(ctx, c.Hash)
		if err != nil {
			ix.logger.Debug("failed to read commit diff, continuing with metadata only",
				zap.String("hash", c.Hash), zap.Error(err))
		}
		commitFiles, err := ix.repo.CommitFiles(ctx, c.Hash)
		if err != nil {
			ix.logger.Debug("failed to list commit files",
				zap.String("hash", c.Hash), zap.Error(err))
		}

		summaries[i] = diffparse.Summary(diff)
		files[i] = commitFiles
		docs[i] = BuildDocument(c, commitFiles, summaries[i])
	}

	vectors, err := ix.engine.EmbedBatch(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return 0, fmt.Errorf("engine returned %d vectors for %d documents", len(vectors), len(batch))
	}

	indexed := 0
	for i, c := range batch {
		err := ix.store.Put(ctx, store.Change{
			CommitHash: c.Hash,
			Author:     c.Author,
			Email:      c.Email,
			AuthoredAt: c.When,
			Subject:    c.Subject,
			Body:       c.Body,
			Files:      files[i],
			Summary:    summaries[i],
			Embedding:  vectors[i],
		})
		if err != nil {
			return indexed, fmt.Errorf("failed to store commit %s: %w", c.Hash, err)
		}
		indexed++
	}
	return indexed, nil
}

// BuildDocument renders the text that represents one commit for embedding.
// Reembedding rebuilds the identical text from stored columns via
// store.Change.Document.
func BuildDocument(c gitrepo.Commit, files []string, summary string) string {
	return store.Change{
		Subject: c.Subject,
		Body:    c.Body,
		Files:   files,
		Summary: summary,
	}.Document()
}

// Searcher answers similarity queries against the change store.
type Searcher struct {
	repo   History
	store  Store
	engine embedding.Engine // query task type
}

// NewSearcher creates a Searcher. engine must embed with the query task type.
func NewSearcher(repo History, st Store, engine embedding.Engine) *Searcher {
	return &Searcher{repo: repo, store: st, engine: engine}
}

// Search embeds the query and returns the k most similar stored changes.
// An empty query falls back to the current working-tree diff, so plain
// `sprout similar` finds changes resembling what is being worked on now.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]store.ScoredChange, error) {
	if s.engine == nil {
		return nil, fmt.Errorf("no embedding engine configured")
	}

	if strings.TrimSpace(query) == "" {
		diff, err := s.repo.AllChanges(ctx)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(diff) == "" {
			return nil, ErrEmptyQuery
		}
		query = diffparse.Summary(diff) + "\n" + diffparse.Truncate(diff, 8192)
	}

	vector, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return s.store.SearchSimilar(ctx, vector, k)
}
