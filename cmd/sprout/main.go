// sprout drafts commit messages, PR descriptions, and reviewer suggestions
// from your repository's own history.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sprout/internal/config"
	"sprout/internal/embedding"
	"sprout/internal/gitrepo"
	"sprout/internal/indexer"
	"sprout/internal/store"
)

var (
	// Global flags
	verbose    bool
	repoPath   string
	configPath string

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sprout",
	Short: "sprout - draft commits, PRs, and reviewers from repository history",
	Long: `sprout analyzes your git history to help with the work before the code
review: it drafts commit messages and PR descriptions with an LLM, finds past
changes similar to what you are working on, and suggests reviewers who know
the files you touched.

Run 'sprout init' once per repository, then 'sprout index' to embed history.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&repoPath, "repo", "r", ".", "Repository path (any directory inside it)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <repo>/.sprout/config.yaml)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(prCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(statusCmd)
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// openRepo locates the repository from --repo.
func openRepo(ctx context.Context) (*gitrepo.Repo, error) {
	repo, err := gitrepo.Open(ctx, repoPath, gitrepo.WithLogger(logger))
	if err != nil {
		if errors.Is(err, gitrepo.ErrNotARepository) {
			return nil, fmt.Errorf("%s is not inside a git repository", repoPath)
		}
		return nil, err
	}
	return repo, nil
}

// loadConfig reads the repository's config, honoring --config.
func loadConfig(repo *gitrepo.Repo) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.PathIn(repo.Root())
	}
	return config.Load(path)
}

// openStore opens the change store, resolving relative paths against the
// repository root.
func openStore(repo *gitrepo.Repo, cfg *config.Config) (*store.ChangeStore, error) {
	path := cfg.Store.DatabasePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(repo.Root(), path)
	}
	return store.Open(path, logger)
}

// newSearcher wires a query-task searcher over the store, for retrieval.
func newSearcher(repo *gitrepo.Repo, st *store.ChangeStore, cfg *config.Config) (*indexer.Searcher, error) {
	engine, err := embedding.New(cfg.Embedding, embedding.TaskQuery)
	if err != nil {
		return nil, err
	}
	return indexer.NewSearcher(repo, st, engine), nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
