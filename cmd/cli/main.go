package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gometa/adapters/excel"
	"gometa/adapters/postgres"
	"gometa/app"
	"gometa/domain/meta"
	"gometa/internal"
	"gometa/internal/config"
	"gometa/models"
	"gometa/ports"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "gometa-cli",
		Short: "GoMeta CLI for effect-size estimation and meta-analysis pooling",
	}

	rootCmd.AddCommand(
		newEstimateCmd(),
		newAnalyzeCmd(),
		newImportCmd(),
		newStudiesCmd(),
		newReportsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newEstimateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "estimate [data-file]",
		Short: "Estimate per-outcome effect sizes from a dataset",
		Long: `Read a dataset (xlsx or csv), run the per-outcome estimation and print
the resulting effect size records grouped by study.

Example: gometa-cli estimate studies.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			studies, err := excel.NewDataReader(args[0]).ReadStudies()
			if err != nil {
				return fmt.Errorf("failed to read dataset: %w", err)
			}

			for _, study := range studies {
				fmt.Printf("%s\n", study)
				for _, o := range study.Outcomes {
					fmt.Printf("  %s\n", o)
				}
			}
			return nil
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	var method string
	var save bool
	var fromDB bool

	cmd := &cobra.Command{
		Use:   "analyze [data-file] [labels...]",
		Short: "Pool outcome labels across studies",
		Long: `Run an inverse-variance meta-analysis for each outcome label across the
studies in a dataset. Without explicit labels every label found in the
dataset is pooled.

With --from-db the data-file argument is ignored and studies are loaded
from the configured database instead.

Example: gometa-cli analyze studies.xlsx crime education --method auto`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			poolMethod, err := parseMethod(method)
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), args[0], args[1:], poolMethod, save, fromDB)
		},
	}

	cmd.Flags().StringVar(&method, "method", "auto", "Pooling model: auto|fixed|random")
	cmd.Flags().BoolVar(&save, "save", false, "Persist reports to the database")
	cmd.Flags().BoolVar(&fromDB, "from-db", false, "Load studies from the database instead of a file")

	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [data-file]",
		Short: "Import a dataset into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			studies, err := excel.NewDataReader(args[0]).ReadStudies()
			if err != nil {
				return fmt.Errorf("failed to read dataset: %w", err)
			}

			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := postgres.NewStudyRepository(db)
			for _, study := range studies {
				if err := repo.SaveStudy(ctx, study); err != nil {
					return fmt.Errorf("failed to save study %q: %w", study.Citation, err)
				}
			}

			fmt.Printf("Imported %d studies\n", len(studies))
			return nil
		},
	}
}

func newStudiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "studies",
		Short: "Manage stored studies",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored studies",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()

				db, err := openDatabase(ctx)
				if err != nil {
					return err
				}
				defer db.Close()

				studies, err := postgres.NewStudyRepository(db).ListStudies(ctx)
				if err != nil {
					return err
				}
				for _, study := range studies {
					fmt.Printf("%s\n", study)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete [citation]",
			Short: "Delete a stored study by citation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()

				db, err := openDatabase(ctx)
				if err != nil {
					return err
				}
				defer db.Close()

				if err := postgres.NewStudyRepository(db).DeleteStudy(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted study %q\n", args[0])
				return nil
			},
		},
	)

	return cmd
}

func newReportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reports [label]",
		Short: "List stored analysis reports for a label, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			reports, err := postgres.NewReportRepository(db).ListReports(ctx, args[0])
			if err != nil {
				return err
			}
			for _, report := range reports {
				printReport(report)
			}
			return nil
		},
	}
}

func runAnalyze(ctx context.Context, dataFile string, labels []string, method meta.PoolMethod, save, fromDB bool) error {
	logger := internal.DefaultLogger

	var studies []*meta.Study
	var reportRepo ports.ReportRepository

	if fromDB || save {
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if fromDB {
			studies, err = postgres.NewStudyRepository(db).ListStudies(ctx)
			if err != nil {
				return fmt.Errorf("failed to load studies: %w", err)
			}
		}
		if save {
			reportRepo = postgres.NewReportRepository(db)
		}
	}

	if !fromDB {
		var err error
		studies, err = excel.NewDataReader(dataFile).ReadStudies()
		if err != nil {
			return fmt.Errorf("failed to read dataset: %w", err)
		}
	}

	if len(labels) == 0 {
		labels = app.Labels(studies)
		logger.Info("no labels given, pooling all %d labels found", len(labels))
	}

	svc := app.NewAnalysisService()
	reports, err := svc.RunAll(ctx, studies, labels, method)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	for _, report := range reports {
		printReport(report)
		if reportRepo != nil {
			if err := reportRepo.SaveReport(ctx, report); err != nil {
				return fmt.Errorf("failed to save report for %q: %w", report.Label, err)
			}
			logger.Info("saved report %s for label %q", report.ID, report.Label)
		}
	}
	return nil
}

func printReport(report *models.AnalysisReport) {
	fmt.Printf("\n=== %s ===\n", report.Label)
	fmt.Printf("Model: %s (requested %s)\n", report.Method, report.Requested)
	fmt.Printf("Pooled ES: %.4f | Variance: %.6f\n", report.EffectSize, report.Variance)
	fmt.Printf("Q: %.4f (dof %d, p %.4f) | Tau^2: %.4f | I^2: %.4f\n",
		report.Q, report.DOF, report.PValue, report.TauSquared, report.ISquared)
	fmt.Printf("Outcomes: %d across %d studies\n", report.Outcomes, report.Studies)
	fmt.Printf("Effect sizes: mean %.4f, median %.4f, range [%.4f, %.4f]\n",
		report.Summary.Mean, report.Summary.Median, report.Summary.Min, report.Summary.Max)
}

func parseMethod(method string) (meta.PoolMethod, error) {
	switch method {
	case "auto":
		return meta.Auto, nil
	case "fixed":
		return meta.Fixed, nil
	case "random":
		return meta.Random, nil
	default:
		return "", fmt.Errorf("invalid method: %s (expected auto|fixed|random)", method)
	}
}

func openDatabase(ctx context.Context) (*sqlx.DB, error) {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for database operations")
	}
	conn, err := postgres.Connect(cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
