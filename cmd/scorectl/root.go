package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-scoring/internal/config"
	"github.com/mind-engage/mindengage-scoring/internal/db"
	"github.com/mind-engage/mindengage-scoring/internal/exam"
	"github.com/mind-engage/mindengage-scoring/internal/grading"
)

var rootCmd = &cobra.Command{
	Use:           "scorectl",
	Short:         "Exam scoring tools",
	Long:          "scorectl scores attempts, checks answers and loads curves and templates into the scoring database.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file (overrides CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("db-driver", "", "sqlite or postgres (overrides DB_DRIVER)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database DSN (overrides DB_DSN)")

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(importCurveCmd)
	rootCmd.AddCommand(importTemplateCmd)
}

// loadConfig resolves config with flags taking priority over file and env.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if v, _ := cmd.Flags().GetString("db-driver"); v != "" {
		cfg.DBDriver = v
	}
	if v, _ := cmd.Flags().GetString("db-dsn"); v != "" {
		cfg.DBDSN = v
	}
	return cfg, nil
}

// openStore opens the configured database. The caller closes the *sql.DB.
func openStore(ctx context.Context, cfg config.Config) (*exam.SQLStore, *sql.DB, error) {
	if cfg.DBDriver == config.DriverMemory {
		return nil, nil, fmt.Errorf("scorectl needs a persistent database, not %q", cfg.DBDriver)
	}
	octx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dbh, err := db.Open(octx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	grader := grading.NewDefaultGrader(grading.WithTolerance(cfg.Scoring.GridInTolerance))
	return exam.NewSQLStore(dbh, cfg.DBDriver, grader), dbh, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
