package postgres

import (
	"testing"

	"cohortstat/ports"
)

func TestReportRepositoryExposesReadMethods(t *testing.T) {
	repo := NewReportRepository(nil)

	// The write path satisfies the sink port; the read methods stay
	// reachable on the concrete type.
	var sink ports.ReportSink = repo
	if sink == nil {
		t.Fatal("repository does not satisfy ports.ReportSink")
	}
	var (
		_ = repo.GetReport
		_ = repo.ListFingerprints
	)
}
