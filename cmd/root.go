package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/commons-lab/hansard-classify/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hansard-classify",
	Short: "Topic classification for House of Commons debates",
	Long:  "Labels Hansard debates for Brexit relevance using lexical keyword scoring fused with a Claude classification call, under a hard cost budget and rate limit.",
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
