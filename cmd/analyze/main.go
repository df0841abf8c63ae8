// Command analyze runs the full healing-trajectory analysis over one
// visit-record export and prints the structured report as JSON. With a
// DATABASE_URL configured, the report is also persisted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"cohortstat/adapters/excel"
	"cohortstat/adapters/postgres"
	"cohortstat/app"
	"cohortstat/internal"
	"cohortstat/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	sourceFlag := flag.String("source", "", "visit records file (.xlsx or .csv), overrides VISIT_SOURCE_FILE")
	sheetFlag := flag.String("sheet", "", "workbook sheet name, overrides VISIT_SOURCE_SHEET")
	flag.Parse()

	// .env is optional; environment variables win either way.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *sourceFlag != "" {
		cfg.Data.SourceFile = *sourceFlag
	}
	if *sheetFlag != "" {
		cfg.Data.SheetName = *sheetFlag
	}
	if cfg.Data.SourceFile == "" {
		return fmt.Errorf("no source file: set VISIT_SOURCE_FILE or pass -source")
	}

	logger := internal.NewDefaultLogger()
	ctx := context.Background()

	source := excel.NewReader(cfg.Data.SourceFile, cfg.Data.SheetName)
	records, err := source.ReadVisits(ctx)
	if err != nil {
		return err
	}
	logger.Info("loaded %d visit records from %s", len(records), cfg.Data.SourceFile)

	service := app.NewPipelineService(cfg.Analysis, logger)
	report, err := service.Run(ctx, app.RunRequest{Records: records})
	if err != nil {
		return err
	}

	if cfg.Database.Enabled() {
		db, err := postgres.Connect(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		if _, err := db.ExecContext(ctx, postgres.Schema); err != nil {
			return fmt.Errorf("ensuring report schema: %w", err)
		}
		if err := postgres.NewReportRepository(db).StoreReport(ctx, report); err != nil {
			return err
		}
		logger.Info("stored report %s", report.RunID)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
