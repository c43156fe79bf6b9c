package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/models"
)

// Sink receives simulation output once per day, after the day's state has
// been finalized. Implementations need not be safe for concurrent use.
type Sink interface {
	RecordInfections(ctx context.Context, events []models.InfectionEvent) error
	RecordReports(ctx context.Context, reports []InfectionReport) error
	RecordRestrictions(ctx context.Context, records []RestrictionRecord) error
}

// Memory is a Sink that keeps everything in memory. It is used by tests
// and the simulation harness.
type Memory struct {
	mu           sync.Mutex
	Infections   []models.InfectionEvent
	Reports      []InfectionReport
	Restrictions []RestrictionRecord
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) RecordInfections(_ context.Context, events []models.InfectionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Infections = append(m.Infections, events...)
	return nil
}

func (m *Memory) RecordReports(_ context.Context, reports []InfectionReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reports = append(m.Reports, reports...)
	return nil
}

func (m *Memory) RecordRestrictions(_ context.Context, records []RestrictionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Restrictions = append(m.Restrictions, records...)
	return nil
}

// Totals returns the "total" reports in day order.
func (m *Memory) Totals() []InfectionReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []InfectionReport
	for _, r := range m.Reports {
		if r.Name == constants.TotalReportKey {
			out = append(out, r)
		}
	}
	return out
}

// Tee fans output out to several sinks in order and stops at the first error.
type Tee []Sink

func (t Tee) RecordInfections(ctx context.Context, events []models.InfectionEvent) error {
	for _, s := range t {
		if err := s.RecordInfections(ctx, events); err != nil {
			return err
		}
	}
	return nil
}

func (t Tee) RecordReports(ctx context.Context, reports []InfectionReport) error {
	for _, s := range t {
		if err := s.RecordReports(ctx, reports); err != nil {
			return err
		}
	}
	return nil
}

func (t Tee) RecordRestrictions(ctx context.Context, records []RestrictionRecord) error {
	for _, s := range t {
		if err := s.RecordRestrictions(ctx, records); err != nil {
			return err
		}
	}
	return nil
}

// JSONLSink appends output to infections.jsonl, reports.jsonl and
// restrictions.jsonl inside a directory.
type JSONLSink struct {
	infections   *os.File
	reports      *os.File
	restrictions *os.File
}

// NewJSONLSink creates dir if needed and truncates the three output files.
func NewJSONLSink(dir string) (*JSONLSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	s := &JSONLSink{}
	files := []struct {
		name string
		dst  **os.File
	}{
		{"infections.jsonl", &s.infections},
		{"reports.jsonl", &s.reports},
		{"restrictions.jsonl", &s.restrictions},
	}
	for _, f := range files {
		fh, err := os.Create(filepath.Join(dir, f.name))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create %s: %w", f.name, err)
		}
		*f.dst = fh
	}
	return s, nil
}

func (s *JSONLSink) RecordInfections(_ context.Context, events []models.InfectionEvent) error {
	return writeLines(s.infections, events)
}

func (s *JSONLSink) RecordReports(_ context.Context, reports []InfectionReport) error {
	return writeLines(s.reports, reports)
}

func (s *JSONLSink) RecordRestrictions(_ context.Context, records []RestrictionRecord) error {
	return writeLines(s.restrictions, records)
}

// Close closes all output files.
func (s *JSONLSink) Close() error {
	var errs []error
	for _, f := range []*os.File{s.infections, s.reports, s.restrictions} {
		if f != nil {
			errs = append(errs, f.Close())
		}
	}
	return errors.Join(errs...)
}

func writeLines[T any](f *os.File, items []T) error {
	enc := json.NewEncoder(f)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("failed to write %s: %w", filepath.Base(f.Name()), err)
		}
	}
	return nil
}
