package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sprout/cmd/sprout/ui"
	"sprout/internal/compose"
	"sprout/internal/llm"
)

var prBase string

var prCmd = &cobra.Command{
	Use:   "pr",
	Short: "Draft a pull request description for the current branch",
	Long: `Generates a markdown PR description from the commits and diff between
the base branch and HEAD. Rendered for the terminal when interactive; raw
markdown when piped, ready for 'gh pr create --body-file -'.`,
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
		client, err := llm.New(cfg.LLM)
		if err != nil {
			return err
		}

		var similar compose.SimilarFinder
		if st, err := openStore(repo, cfg); err == nil {
			defer st.Close()
			if s, err := newSearcher(repo, st, cfg); err == nil {
				similar = s
			}
		} else {
			logger.Debug("change store unavailable", zap.Error(err))
		}

		svc := compose.NewPRService(repo, client, similar, logger)

		var draft *compose.PRDraft
		generate := func() error {
			var err error
			draft, err = svc.Describe(ctx, prBase)
			return err
		}
		if isTerminal(os.Stdout) {
			err = ui.Spin("Drafting PR description...", generate)
		} else {
			err = generate()
		}
		if err != nil {
			if errors.Is(err, llm.ErrNoAPIKey) {
				return fmt.Errorf("%w: set GEMINI_API_KEY (or the key for your provider) in the environment or a .env file", err)
			}
			if errors.Is(err, compose.ErrNoBranchChanges) {
				return fmt.Errorf("no changes between %s and HEAD", prBase)
			}
			return err
		}

		if !isTerminal(os.Stdout) {
			fmt.Println(draft.Markdown)
			return nil
		}

		rendered, err := renderMarkdown(draft.Markdown)
		if err != nil {
			logger.Debug("markdown rendering failed, printing raw", zap.Error(err))
			fmt.Println(draft.Markdown)
			return nil
		}
		fmt.Print(rendered)
		return nil
	},
}

func renderMarkdown(markdown string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	return r.Render(markdown)
}

func init() {
	prCmd.Flags().StringVarP(&prBase, "base", "b", "main", "Base branch to diff against")
}
