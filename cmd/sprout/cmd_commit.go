package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sprout/cmd/sprout/ui"
	"sprout/internal/compose"
	"sprout/internal/gitrepo"
	"sprout/internal/llm"
)

var (
	commitCount int
	commitAll   bool
	commitYes   bool
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Draft commit messages for the staged changes",
	Long: `Asks the configured LLM for commit message candidates describing the
staged diff, using similar past commits from the index as style context.

On a terminal you pick one interactively and sprout creates the commit.
When piped, or with --yes, no picker is shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		repo, err := openRepo(ctx)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(repo)
		if err != nil {
			return err
		}

		if commitAll {
			if err := repo.StageAll(ctx); err != nil {
				return fmt.Errorf("failed to stage changes: %w", err)
			}
		}

		client, err := llm.New(cfg.LLM)
		if err != nil {
			return err
		}

		// Retrieval is optional; drafting works without an index.
		var similar compose.SimilarFinder
		if st, err := openStore(repo, cfg); err == nil {
			defer st.Close()
			if s, err := newSearcher(repo, st, cfg); err == nil {
				similar = s
			} else {
				logger.Debug("retrieval disabled", zap.Error(err))
			}
		} else {
			logger.Debug("change store unavailable", zap.Error(err))
		}

		svc := compose.NewCommitService(repo, client, similar, logger)

		var suggestions []compose.Suggestion
		generate := func() error {
			var err error
			suggestions, err = svc.Suggest(ctx, commitCount)
			return err
		}
		if isTerminal(os.Stdout) {
			err = ui.Spin("Drafting commit messages...", generate)
		} else {
			err = generate()
		}
		if err != nil {
			if errors.Is(err, llm.ErrNoAPIKey) {
				return fmt.Errorf("%w: set GEMINI_API_KEY (or the key for your provider) in the environment or a .env file", err)
			}
			return err
		}

		if commitYes {
			return doCommit(ctx, repo, suggestions[0])
		}

		if isTerminal(os.Stdout) && isTerminal(os.Stdin) {
			idx, err := ui.PickSuggestion(suggestions)
			if err != nil {
				if errors.Is(err, ui.ErrAborted) {
					fmt.Println("No commit made.")
					return nil
				}
				return err
			}
			return doCommit(ctx, repo, suggestions[idx])
		}

		for i, s := range suggestions {
			fmt.Printf("%d. %s\n", i+1, s.Title)
			if s.Body != "" {
				fmt.Printf("\n%s\n", s.Body)
			}
			if s.Rationale != "" {
				fmt.Printf("   (%s)\n", s.Rationale)
			}
			fmt.Println()
		}
		return nil
	},
}

func doCommit(ctx context.Context, repo *gitrepo.Repo, s compose.Suggestion) error {
	if err := repo.Commit(ctx, s.Message()); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	fmt.Printf("Committed: %s\n", s.Title)
	return nil
}

func init() {
	commitCmd.Flags().IntVarP(&commitCount, "count", "n", 3, "Number of suggestions to generate")
	commitCmd.Flags().BoolVarP(&commitAll, "all", "a", false, "Stage all changes first (git add -A)")
	commitCmd.Flags().BoolVarP(&commitYes, "yes", "y", false, "Commit the first suggestion without asking")
}
