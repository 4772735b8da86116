package main

import (
	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-scoring/internal/exam"
	"github.com/mind-engage/mindengage-scoring/internal/scoring"
	syncx "github.com/mind-engage/mindengage-scoring/internal/sync"
)

var scoreCmd = &cobra.Command{
	Use:   "score <attemptID>",
	Short: "Compute final scores for an attempt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, dbh, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbh.Close()

		svc := scoring.NewService(exam.Sources(store),
			scoring.WithMaxInvalidFraction(cfg.Scoring.MaxInvalidFraction),
			scoring.WithFetchTimeout(cfg.Scoring.FetchTimeout),
		)
		res, err := svc.ComputeFinalScores(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if save, _ := cmd.Flags().GetBool("save"); save {
			rec := &syncx.Recorder{Scores: store, History: store, Events: syncx.NewEventRepo(dbh), SiteID: cfg.SiteID}
			if err := rec.SaveScores(cmd.Context(), res); err != nil {
				return err
			}
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	scoreCmd.Flags().Bool("save", false, "persist the result on the attempt")
}
