package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sprout/cmd/sprout/ui"
	"sprout/internal/indexer"
)

var (
	similarK         int
	similarShowFiles bool
)

var similarCmd = &cobra.Command{
	Use:   "similar [query]",
	Short: "Find past changes similar to a query or the working tree",
	Long: `Searches the index for past changes resembling the query. Without a
query, the current working-tree diff is used, so plain 'sprout similar' shows
how this kind of change was done before.`,
	Args: cobra.MaximumNArgs(1),
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
		st, err := openStore(repo, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		searcher, err := newSearcher(repo, st, cfg)
		if err != nil {
			return err
		}

		query := ""
		if len(args) == 1 {
			query = args[0]
		}

		results, err := searcher.Search(ctx, query, similarK)
		if err != nil {
			if errors.Is(err, indexer.ErrEmptyQuery) {
				return errors.New("nothing to search: give a query or make some changes first")
			}
			return err
		}
		if len(results) == 0 {
			fmt.Println("No similar changes found. Run 'sprout index' to build the index.")
			return nil
		}

		for i, r := range results {
			score := ui.ScoreStyle.Render(fmt.Sprintf("%.2f", r.Similarity))
			fmt.Printf("%2d. [%s] %s %s\n", i+1,
				score,
				ui.TitleStyle.Render(r.Subject),
				ui.SubtleStyle.Render(r.CommitHash[:min(8, len(r.CommitHash))]))
			meta := fmt.Sprintf("    %s · %s · %s",
				r.Author, r.AuthoredAt.Format("2006-01-02"), r.Summary)
			fmt.Println(ui.SubtleStyle.Render(meta))
			if similarShowFiles && len(r.Files) > 0 {
				fmt.Println(ui.SubtleStyle.Render("    " + strings.Join(r.Files, ", ")))
			}
		}
		return nil
	},
}

func init() {
	similarCmd.Flags().IntVarP(&similarK, "top", "k", 10, "Number of results")
	similarCmd.Flags().BoolVar(&similarShowFiles, "show-files", false, "Show the files each change touched")
}
