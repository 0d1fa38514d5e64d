package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sprout/cmd/sprout/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show repository and index status",
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

		info, err := repo.Info(ctx)
		if err != nil {
			return err
		}

		fmt.Println(ui.TitleStyle.Render("Repository"))
		fmt.Printf("  root:    %s\n", info.Root)
		fmt.Printf("  branch:  %s\n", info.Branch)
		fmt.Printf("  commits: %d\n", info.TotalCommits)
		if info.Dirty {
			fmt.Println("  state:   dirty (uncommitted changes)")
		} else {
			fmt.Println("  state:   clean")
		}

		st, err := openStore(repo, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.Stats(ctx)
		if err != nil {
			return err
		}

		fmt.Println(ui.TitleStyle.Render("Index"))
		fmt.Printf("  changes:    %d (%d embedded, %d pending)\n",
			stats.TotalChanges, stats.WithEmbeddings, stats.WithoutEmbeddings)
		if !stats.LastIndexedAt.IsZero() {
			fmt.Printf("  last index: %s\n", stats.LastIndexedAt.Format("2006-01-02 15:04"))
		} else {
			fmt.Println("  last index: never (run 'sprout index')")
		}
		if stats.VecExtension {
			fmt.Println("  search:     sqlite-vec ANN")
		} else {
			fmt.Println("  search:     exact cosine scan")
		}

		fmt.Println(ui.TitleStyle.Render("Config"))
		fmt.Printf("  llm:       %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
		embedModel := cfg.Embedding.OllamaModel
		if cfg.Embedding.Provider == "genai" {
			embedModel = cfg.Embedding.GenAIModel
		}
		fmt.Printf("  embedding: %s (%s)\n", cfg.Embedding.Provider, embedModel)
		return nil
	},
}
