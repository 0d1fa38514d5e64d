package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sprout/internal/embedding"
	"sprout/internal/indexer"
)

var (
	indexLimit   int
	indexWatch   bool
	indexReembed bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed repository history into the change store",
	Long: `Walks git history, embeds one document per commit, and stores the
vectors for similarity search. Already-indexed commits are skipped, so
re-running only picks up new history.

--watch keeps running and re-indexes whenever new commits appear.
--reembed recomputes every stored vector, for after an embedding model change.`,
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

		engine, err := embedding.New(cfg.Embedding, embedding.TaskDocument)
		if err != nil {
			return err
		}

		if hc, ok := engine.(embedding.HealthChecker); ok {
			if err := hc.HealthCheck(ctx); err != nil {
				return fmt.Errorf("embedding engine %s unavailable: %w", engine.Name(), err)
			}
		}

		if indexReembed {
			n, err := st.ReembedAll(ctx, engine, true)
			if err != nil {
				return err
			}
			fmt.Printf("Re-embedded %d changes.\n", n)
			return nil
		}

		ixCfg := indexer.Config{
			MaxCommits:  cfg.Index.MaxCommits,
			BatchSize:   cfg.Index.BatchSize,
			Parallelism: cfg.Index.Parallelism,
		}
		if indexLimit > 0 {
			ixCfg.MaxCommits = indexLimit
		}

		ix := indexer.New(repo, st, engine, ixCfg, logger)

		n, err := ix.Index(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("Index is up to date.")
		} else {
			fmt.Printf("Indexed %d commits.\n", n)
		}

		if indexWatch {
			fmt.Println("Watching for new commits. Ctrl-C to stop.")
			if err := ix.Watch(ctx, repo.Root()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().IntVar(&indexLimit, "limit", 0, "Index at most N commits (0 = config default)")
	indexCmd.Flags().BoolVar(&indexWatch, "watch", false, "Keep running and re-index on new commits")
	indexCmd.Flags().BoolVar(&indexReembed, "reembed", false, "Recompute all stored embeddings")
}
