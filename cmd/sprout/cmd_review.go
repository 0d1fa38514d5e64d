package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sprout/cmd/sprout/ui"
	"sprout/internal/compose"
)

var reviewK int

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Suggest reviewers for the current changes",
	Long: `Ranks past authors of the files you changed. Scoring is local and
deterministic: recent touches count more than old ones, and you are excluded
from your own candidate list.`,
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

		svc := compose.NewReviewerService(repo, cfg.Review, logger)
		reviewers, err := svc.Suggest(ctx, reviewK)
		if err != nil {
			if errors.Is(err, compose.ErrNoChanges) {
				return errors.New("no changed files: make some changes, then ask for reviewers")
			}
			return err
		}
		if len(reviewers) == 0 {
			fmt.Println("No reviewer candidates found in the history of the changed files.")
			return nil
		}

		for i, r := range reviewers {
			fmt.Printf("%d. %s %s %s\n", i+1,
				ui.TitleStyle.Render(r.Name),
				ui.SubtleStyle.Render("<"+r.Email+">"),
				ui.ScoreStyle.Render(fmt.Sprintf("%.2f", r.Score)))
			evidence := fmt.Sprintf("   last touch %s · %s",
				r.LastTouch.Format("2006-01-02"), strings.Join(r.Files, ", "))
			fmt.Println(ui.SubtleStyle.Render(evidence))
		}
		return nil
	},
}

func init() {
	reviewCmd.Flags().IntVarP(&reviewK, "top", "k", 3, "Number of reviewers to suggest")
}
