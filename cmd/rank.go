package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Score today's candidates without enrichment or delivery",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		papers, err := env.Pipeline.Rank(ctx, env.Categories)
		if err != nil {
			return eris.Wrap(err, "rank candidates")
		}
		if len(papers) == 0 {
			fmt.Println("no new papers today")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tID\tTITLE")
		for _, p := range papers {
			fmt.Fprintf(w, "%.2f\t%s\t%s\n", p.Score, p.ID, p.Title)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)
}
