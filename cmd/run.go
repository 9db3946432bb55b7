package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scholarstream/arxiv-digest/internal/digest"
)

var runDryRunFile string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, rank, enrich, and deliver today's digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, env.Categories)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		if runDryRunFile != "" {
			if err := os.WriteFile(runDryRunFile, []byte(result.HTML), 0o644); err != nil {
				return eris.Wrap(err, "write digest html")
			}
			zap.L().Info("digest written, delivery skipped",
				zap.String("file", runDryRunFile),
				zap.Int("papers", len(result.Papers)),
			)
			return nil
		}

		mailer := digest.Mailer{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Sender:   cfg.SMTP.Sender,
			Receiver: cfg.SMTP.Receiver,
			Password: cfg.SMTP.Password,
		}
		if err := mailer.Send(result.HTML, result.Date); err != nil {
			return eris.Wrap(err, "send digest")
		}

		zap.L().Info("digest delivered",
			zap.String("receiver", cfg.SMTP.Receiver),
			zap.Int("papers", len(result.Papers)),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runDryRunFile, "dry-run", "", "write digest HTML to a file instead of sending email")
	rootCmd.AddCommand(runCmd)
}
