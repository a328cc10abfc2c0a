// Package report renders job listings as XLSX workbooks for offline review.
package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
)

const (
	jobsSheet    = "Jobs"
	summarySheet = "Summary"
	dateLayout   = "2006-01-02 15:04:05"
)

var jobHeaders = []string{
	"Job ID",
	"Original Name",
	"Status",
	"Sensitivity",
	"Progress",
	"Owner",
	"MIME Type",
	"Size (bytes)",
	"Duration (s)",
	"Resolution",
	"Codec",
	"Error",
	"Created",
	"Updated",
}

// JobLister is the subset of jobs.Store the exporter reads.
type JobLister interface {
	List(ctx context.Context, filter jobs.Filter) ([]*jobs.Job, error)
}

// Exporter produces XLSX reports of one organization's jobs.
type Exporter struct {
	store  JobLister
	logger *slog.Logger
}

// NewExporter constructs an exporter.
func NewExporter(store JobLister, logger *slog.Logger) *Exporter {
	return &Exporter{store: store, logger: logging.NewComponentLogger(logger, "report")}
}

// ExportXLSX returns a workbook with a row per job matching filter and a
// per-status summary sheet. filter.Organization is required.
func (e *Exporter) ExportXLSX(ctx context.Context, filter jobs.Filter) ([]byte, error) {
	if filter.Organization == "" {
		return nil, fmt.Errorf("export: organization is required")
	}
	start := time.Now()
	list, err := e.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("export: list jobs: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", jobsSheet); err != nil {
		return nil, fmt.Errorf("export: rename sheet: %w", err)
	}
	if err := writeJobs(f, list); err != nil {
		return nil, err
	}
	if err := writeSummary(f, filter.Organization, list); err != nil {
		return nil, err
	}
	index, _ := f.GetSheetIndex(jobsSheet)
	f.SetActiveSheet(index)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export: xlsx write: %w", err)
	}
	e.logger.Info("job report exported",
		logging.String(logging.FieldOrganization, filter.Organization),
		logging.Int("rows", len(list)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return bytes.Clone(buf.Bytes()), nil
}

func writeJobs(f *excelize.File, list []*jobs.Job) error {
	for i, h := range jobHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(jobsSheet, cell, h); err != nil {
			return fmt.Errorf("export: header: %w", err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(jobHeaders), 1)
		_ = f.SetCellStyle(jobsSheet, "A1", last, bold)
	}

	for i, job := range list {
		row := i + 2
		values := []any{
			job.ID,
			job.OriginalName,
			string(job.Status),
			string(job.Sensitivity),
			job.Progress,
			job.OwnerID,
			job.MimeType,
			job.SizeBytes,
			job.DurationSeconds,
			resolution(job.Metadata),
			job.Metadata.Codec,
			job.ErrorMessage,
			formatTime(job.CreatedAt),
			formatTime(job.UpdatedAt),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(jobsSheet, cell, &values); err != nil {
			return fmt.Errorf("export: row %d: %w", row, err)
		}
	}

	_ = f.SetColWidth(jobsSheet, "A", "A", 38)
	_ = f.SetColWidth(jobsSheet, "B", "B", 32)
	_ = f.SetColWidth(jobsSheet, "C", "E", 12)
	_ = f.SetColWidth(jobsSheet, "F", "F", 38)
	_ = f.SetColWidth(jobsSheet, "L", "L", 48)
	_ = f.SetColWidth(jobsSheet, "M", "N", 20)
	return nil
}

func writeSummary(f *excelize.File, organization string, list []*jobs.Job) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("export: summary sheet: %w", err)
	}
	counts := make(map[jobs.Status]int)
	flagged := 0
	for _, job := range list {
		counts[job.Status]++
		if job.Sensitivity == jobs.SensitivityFlagged {
			flagged++
		}
	}
	rows := [][]any{
		{"Organization", organization},
		{"Generated", formatTime(time.Now())},
		{"Total", len(list)},
	}
	for _, status := range jobs.AllStatuses() {
		rows = append(rows, []any{string(status), counts[status]})
	}
	rows = append(rows, []any{"flagged", flagged})
	for i, values := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return fmt.Errorf("export: summary row: %w", err)
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 16)
	_ = f.SetColWidth(summarySheet, "B", "B", 24)
	return nil
}

func resolution(meta jobs.Metadata) string {
	if meta.Width == 0 || meta.Height == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", meta.Width, meta.Height)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}
