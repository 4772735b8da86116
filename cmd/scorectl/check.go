package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-scoring/internal/grading"
)

var checkCmd = &cobra.Command{
	Use:   "check <answer>",
	Short: "Check one answer against accepted answers",
	Example: `  scorectl check 6/8 --accept 3/4 --accept 0.75 --grid-in
  scorectl check " Paris " --accept '["paris"]'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetStringArray("accept")
		gridIn, _ := cmd.Flags().GetBool("grid-in")
		accepted := grading.NormalizeAnswers(raw)

		typ := grading.TypeShortAnswer
		if gridIn {
			typ = grading.TypeGridIn
		}
		g := grading.NewDefaultGrader(grading.WithTolerance(cfg.Scoring.GridInTolerance))
		res, err := g.Grade(cmd.Context(), grading.Q{Type: typ, Points: 1, Accepted: accepted}, args[0])
		if err != nil {
			return fmt.Errorf("check: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), struct {
			grading.GridInResult
			Display string `json:"correct_answers_display"`
		}{
			GridInResult: grading.GridInResult{
				IsCorrect:            res.IsCorrect,
				MatchedAnswer:        res.MatchedAnswer,
				NormalizedSubmission: res.NormalizedSubmission,
			},
			Display: grading.FormatAnswersDisplay(accepted),
		})
	},
}

func init() {
	checkCmd.Flags().StringArray("accept", nil, "accepted answer; repeat, or pass a JSON array")
	checkCmd.Flags().Bool("grid-in", false, "compare numerically (fractions and decimals)")
}
