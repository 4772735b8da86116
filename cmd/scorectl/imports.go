package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-scoring/internal/exam"
	"github.com/mind-engage/mindengage-scoring/internal/scoring"
)

var importCurveCmd = &cobra.Command{
	Use:   "import-curve <file.json>",
	Short: "Load a raw-to-scaled curve and optionally assign it to an exam section",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		pts, err := scoring.ParseCurve(data)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		examID, _ := cmd.Flags().GetString("exam")
		section, _ := cmd.Flags().GetString("section")
		if (examID == "") != (section == "") {
			return fmt.Errorf("--exam and --section go together")
		}

		return withStore(cmd, func(store *exam.SQLStore) error {
			if err := store.PutCurve(cmd.Context(), scoring.Curve{ID: id, Name: name, Points: pts}); err != nil {
				return err
			}
			if examID != "" {
				if err := store.AssignCurve(cmd.Context(), examID, section, id); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "curve %s: %d points\n", id, len(pts))
			return nil
		})
	},
}

var importTemplateCmd = &cobra.Command{
	Use:   "import-template <file.json>",
	Short: "Load a section-to-modules template and optionally attach it to an exam",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		secs, err := scoring.ParseTemplateSections(data)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		examID, _ := cmd.Flags().GetString("exam")

		return withStore(cmd, func(store *exam.SQLStore) error {
			t := scoring.Template{ID: id, Name: name, Sections: secs}
			if err := store.PutTemplate(cmd.Context(), t); err != nil {
				return err
			}
			if examID != "" {
				e, err := store.GetExam(cmd.Context(), examID)
				if err != nil {
					return err
				}
				e.TemplateID = id
				if err := store.PutExam(cmd.Context(), e); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "template %s: sections %v\n", id, t.SectionNames())
			return nil
		})
	},
}

func withStore(cmd *cobra.Command, fn func(*exam.SQLStore) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, dbh, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer dbh.Close()
	return fn(store)
}

func init() {
	for _, c := range []*cobra.Command{importCurveCmd, importTemplateCmd} {
		c.Flags().String("id", "", "document id (required)")
		c.Flags().String("name", "", "display name")
		c.Flags().String("exam", "", "exam to attach to")
		_ = c.MarkFlagRequired("id")
	}
	importCurveCmd.Flags().String("section", "", "section the curve scores (with --exam)")
}
