package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"uniswap-lp-lab/internal/accounting"
	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/storage"
)

// Generator produces run reports from stored position data.
type Generator struct {
	reportStore storage.PositionReportStore
	exclusions  domain.Exclusions
	now         func() time.Time // Injectable clock for deterministic output
	newRunID    func() string
}

// NewGenerator creates a new report generator.
func NewGenerator(reportStore storage.PositionReportStore) *Generator {
	return &Generator{
		reportStore: reportStore,
		now:         func() time.Time { return time.Now().UTC() },
		newRunID:    func() string { return uuid.NewString() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithRunID sets a fixed run id for deterministic output.
func (g *Generator) WithRunID(runID string) *Generator {
	g.newRunID = func() string { return runID }
	return g
}

// WithExclusions attaches the reconstruction run's exclusion counts, which
// are not part of the stored per-position records.
func (g *Generator) WithExclusions(excl domain.Exclusions) *Generator {
	g.exclusions = excl
	return g
}

// Generate loads all finalized positions and builds the run report.
func (g *Generator) Generate(ctx context.Context) (*RunReport, error) {
	positions, err := g.reportStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load position reports: %w", err)
	}

	return &RunReport{
		RunID:       g.newRunID(),
		GeneratedAt: g.now(),
		Positions:   positions,
		Summary:     accounting.Summarize(positions, g.exclusions),
	}, nil
}

// WriteArtifacts renders the report to REPORT.md and positions.csv under
// outputDir, creating the directory if needed.
func (g *Generator) WriteArtifacts(report *RunReport, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	md := RenderMarkdown(report)
	if err := os.WriteFile(filepath.Join(outputDir, "REPORT.md"), []byte(md), 0644); err != nil {
		return err
	}

	csv := RenderPositionsCSV(report.Positions)
	return os.WriteFile(filepath.Join(outputDir, "positions.csv"), []byte(csv), 0644)
}
