// Package postgres persists analysis reports. Reports are stored as a
// small header row plus the full structured result as JSONB, matching
// their append-only lifecycle.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"cohortstat/domain/core"
	"cohortstat/domain/stats"
	"cohortstat/internal/errors"
	"cohortstat/ports"
)

// Schema is the DDL for the report store.
const Schema = `
CREATE TABLE IF NOT EXISTS analysis_reports (
	run_id          TEXT PRIMARY KEY,
	fingerprint     TEXT NOT NULL,
	generated_at    TIMESTAMPTZ NOT NULL,
	total_patients  INTEGER NOT NULL,
	unclassifiable  INTEGER NOT NULL,
	report          JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_reports_fingerprint ON analysis_reports (fingerprint);
`

// ReportRepository stores and retrieves reports over sqlx. It
// implements ports.ReportSink for the write path; the read methods are
// available to callers holding the concrete type.
type ReportRepository struct {
	db *sqlx.DB
}

var _ ports.ReportSink = (*ReportRepository)(nil)

// NewReportRepository creates a report repository
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Connect opens and pings a postgres connection.
func Connect(url string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, errors.WithCode(errors.CodePersist, err, "failed to connect to report store")
	}
	return db, nil
}

// StoreReport inserts one completed report. Run IDs are unique per
// invocation so conflicts indicate a duplicate store attempt.
func (r *ReportRepository) StoreReport(ctx context.Context, report *stats.AnalysisReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return errors.WithCode(errors.CodePersist, err, "failed to marshal report")
	}

	query := `INSERT INTO analysis_reports (
		run_id, fingerprint, generated_at, total_patients, unclassifiable, report
	) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.ExecContext(ctx, query,
		report.RunID.String(), report.Fingerprint.String(), report.GeneratedAt,
		report.TotalPatients, report.Unclassifiable, payload,
	)
	if err != nil {
		return errors.WithCode(errors.CodePersist, err, fmt.Sprintf("failed to store report %s", report.RunID))
	}
	return nil
}

// GetReport retrieves a stored report by run ID.
func (r *ReportRepository) GetReport(ctx context.Context, runID core.RunID) (*stats.AnalysisReport, error) {
	query := `SELECT report FROM analysis_reports WHERE run_id = $1`

	var payload []byte
	if err := r.db.QueryRowContext(ctx, query, runID.String()).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.CodePersist, fmt.Sprintf("report not found: %s", runID))
		}
		return nil, errors.WithCode(errors.CodePersist, err, "failed to get report")
	}

	var report stats.AnalysisReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, errors.WithCode(errors.CodePersist, err, fmt.Sprintf("failed to unmarshal report %s", runID))
	}
	return &report, nil
}

// ListFingerprints returns the stored run IDs for one fingerprint,
// newest first. Re-runs of identical input share a fingerprint.
func (r *ReportRepository) ListFingerprints(ctx context.Context, fingerprint core.RunHash) ([]core.RunID, error) {
	query := `SELECT run_id FROM analysis_reports WHERE fingerprint = $1 ORDER BY generated_at DESC`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, fingerprint.String()); err != nil {
		return nil, errors.WithCode(errors.CodePersist, err, "failed to list reports")
	}

	runIDs := make([]core.RunID, len(ids))
	for i, id := range ids {
		runIDs[i] = core.RunID(id)
	}
	return runIDs, nil
}
