package ports

import (
	"context"

	"cohortstat/domain/cohort"
	"cohortstat/domain/stats"
)

// VisitSource reads the cleaned visit records for one analysis run.
// Implementations own file or database access; the core never touches
// I/O directly.
type VisitSource interface {
	ReadVisits(ctx context.Context) ([]cohort.VisitRecord, error)
}

// ReportSink persists one analysis report. Sinks are append-only; a
// report is never updated after storage.
type ReportSink interface {
	StoreReport(ctx context.Context, report *stats.AnalysisReport) error
}
