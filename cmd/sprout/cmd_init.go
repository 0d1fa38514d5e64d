package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sprout/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up sprout in the current repository",
	Long: `Creates .sprout/config.yaml with defaults and initializes the change
database. Safe to run again; an existing config is left untouched.

API keys are read from the environment or a .env file in the repository root
(GEMINI_API_KEY, ANTHROPIC_API_KEY, or OPENAI_API_KEY).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		repo, err := openRepo(ctx)
		if err != nil {
			return err
		}

		cfgPath := config.PathIn(repo.Root())
		if _, err := os.Stat(cfgPath); err == nil {
			fmt.Printf("Config already exists: %s\n", cfgPath)
		} else {
			if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
				return err
			}
			if err := config.DefaultConfig().Save(cfgPath); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Printf("Wrote %s\n", cfgPath)
		}

		cfg, err := loadConfig(repo)
		if err != nil {
			return err
		}
		st, err := openStore(repo, cfg)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer st.Close()

		fmt.Printf("Database ready: %s\n", cfg.Store.DatabasePath)
		fmt.Println("\nNext: run 'sprout index' to embed your history.")
		return nil
	},
}
