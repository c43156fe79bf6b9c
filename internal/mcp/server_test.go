package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/report"
	"github.com/nvandessel/episim/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	s, err := NewServer(&Config{
		Name:     "episim-test",
		Version:  "v0.0.0",
		DBPath:   filepath.Join(dir, "runs.db"),
		AuditDir: dir,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedRun stores a finished three day run and returns its id.
func seedRun(t *testing.T, s *Server, name string) string {
	t.Helper()
	ctx := context.Background()
	id, err := s.store.CreateRun(ctx, store.Run{Name: name, Seed: 4711, Threads: 2, Iterations: 3, StartDate: "2020-03-01", Policy: "fixed"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	rec := s.store.Recorder(id)

	events := []models.InfectionEvent{
		{Day: 0, Infected: "p1", Strain: models.StrainWildType},
		{Day: 1, Time: 30000, Infector: "p1", Infected: "p2", Container: "w1", Activity: "work", Strain: models.StrainWildType},
		{Day: 2, Time: 70000, Infector: "p2", Infected: "p3", Container: "h2", Activity: "home", Strain: models.StrainWildType},
	}
	if err := rec.RecordInfections(ctx, events); err != nil {
		t.Fatalf("RecordInfections: %v", err)
	}

	var reports []report.InfectionReport
	for day, active := range []int64{1, 2, 1} {
		date := fmt.Sprintf("2020-03-%02d", day+1)
		reports = append(reports,
			report.InfectionReport{Name: "total", Day: day, Date: date, NPopulation: 10, NContagious: active, NSusceptible: 10 - active, NInfectedCumulative: int64(day + 1)},
			report.InfectionReport{Name: "north", Day: day, Date: date, NPopulation: 4, NContagious: 1, NSusceptible: 3, NInfectedCumulative: 1},
		)
	}
	if err := rec.RecordReports(ctx, reports); err != nil {
		t.Fatalf("RecordReports: %v", err)
	}

	var records []report.RestrictionRecord
	for day, fraction := range []float64{1, 1, 0.5} {
		records = append(records,
			report.RestrictionRecord{Day: day, Activity: "work", RemainingFraction: fraction, Exposure: 1},
			report.RestrictionRecord{Day: day, Activity: "home", RemainingFraction: 1, Exposure: 1},
		)
	}
	if err := rec.RecordRestrictions(ctx, records); err != nil {
		t.Fatalf("RecordRestrictions: %v", err)
	}
	if err := s.store.FinishRun(ctx, id, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	return id
}

func TestNewServer(t *testing.T) {
	s := newTestServer(t)

	if s.server == nil {
		t.Error("Server.server is nil")
	}
	if s.store == nil {
		t.Error("Server.store is nil")
	}
	if s.audit == nil {
		t.Error("Server.audit is nil with AuditDir set")
	}
	if s.limiters == nil {
		t.Error("Server.limiters is nil")
	}
}

func TestNewServer_NoAuditDir(t *testing.T) {
	s, err := NewServer(&Config{
		Name:    "episim-test",
		Version: "v0.0.0",
		DBPath:  filepath.Join(t.TempDir(), "runs.db"),
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer s.Close()

	if s.audit != nil {
		t.Error("expected no audit logger without AuditDir")
	}
	// auditTool must not panic on a nil logger.
	s.auditTool("episim_runs", time.Now(), nil, nil)
}

func TestNewServer_BadDBPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := NewServer(&Config{Name: "episim-test", DBPath: filepath.Join(blocker, "runs.db")})
	if err == nil {
		t.Fatal("expected error for database below a regular file")
	}
}
