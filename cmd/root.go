package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scholarstream/arxiv-digest/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "arxiv-digest",
	Short: "Personalized daily arXiv digest",
	Long:  "Ranks newly announced arXiv papers against a Zotero library, enriches the best matches with bilingual summaries, affiliations, and code links, and delivers an HTML digest.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
