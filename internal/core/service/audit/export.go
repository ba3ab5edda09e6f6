package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"costume-portal/internal/core/domain/models"
)

// generate streams the filtered audit set into an artifact file. Row-level
// formats (csv, xlsx) honor the content/metadata flags; the pdf variant is a
// compliance summary.
func (svc *Service) generate(ctx context.Context, criteria models.SearchCriteria, format models.ExportFormat, opts models.ExportOptions) (*models.ExportArtifact, error) {
	if err := os.MkdirAll(svc.cfg.ArtifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}

	name := fmt.Sprintf("audit_export_%s.%s", uuid.NewString(), format)
	path := filepath.Join(svc.cfg.ArtifactDir, name)

	var count int
	var err error

	switch format {
	case models.FormatCSV:
		count, err = svc.writeCSV(ctx, path, criteria, opts)
	case models.FormatXLSX:
		count, err = svc.writeXLSX(ctx, path, criteria, opts)
	case models.FormatPDF:
		count, err = svc.writePDF(ctx, path, criteria)
	default:
		return nil, models.ErrorValidationFailed
	}

	if err != nil {
		os.Remove(path)
		return nil, err
	}

	now := time.Now().UTC()
	return &models.ExportArtifact{
		Path:        path,
		Format:      format,
		RecordCount: count,
		GeneratedAt: now,
		ExpiresAt:   now.Add(svc.cfg.ArtifactTTL),
	}, nil
}

func exportHeader(opts models.ExportOptions) []string {
	header := []string{"id", "created_at", "organization_id", "order_number", "stage", "user_id", "channel", "recipient", "status"}
	if opts.IncludeContent {
		header = append(header, "subject", "body")
	}
	if opts.IncludeMetadata {
		header = append(header, "error_detail", "metadata")
	}
	return header
}

func exportRow(rec models.CommunicationAuditRecord, opts models.ExportOptions) []string {
	row := []string{
		rec.ID,
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.OrganizationID,
		rec.OrderNumber,
		string(rec.Stage),
		rec.UserID,
		string(rec.Channel),
		rec.Recipient,
		string(rec.Status),
	}
	if opts.IncludeContent {
		row = append(row, rec.Subject, rec.Body)
	}
	if opts.IncludeMetadata {
		row = append(row, rec.ErrorDetail, flattenMetadata(rec.Metadata))
	}
	return row
}

func flattenMetadata(md map[string]string) string {
	if len(md) == 0 {
		return ""
	}
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+md[k])
	}
	return strings.Join(pairs, "; ")
}

func (svc *Service) writeCSV(ctx context.Context, path string, criteria models.SearchCriteria, opts models.ExportOptions) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(exportHeader(opts)); err != nil {
		return 0, err
	}

	count := 0
	err = svc.store.Stream(ctx, criteria, func(rec models.CommunicationAuditRecord) error {
		count++
		return w.Write(exportRow(rec, opts))
	})
	if err != nil {
		return 0, err
	}

	w.Flush()
	return count, w.Error()
}

func (svc *Service) writeXLSX(ctx context.Context, path string, criteria models.SearchCriteria, opts models.ExportOptions) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	for col, title := range exportHeader(opts) {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return 0, err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return 0, err
		}
	}

	count := 0
	err := svc.store.Stream(ctx, criteria, func(rec models.CommunicationAuditRecord) error {
		count++
		for col, value := range exportRow(rec, opts) {
			cell, err := excelize.CoordinatesToCellName(col+1, count+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, f.SaveAs(path)
}

// writePDF produces the compliance summary: record volume by status and
// channel for the filtered window, not row-level content.
func (svc *Service) writePDF(ctx context.Context, path string, criteria models.SearchCriteria) (int, error) {
	count := 0
	byStatus := make(map[models.NotificationStatus]int)
	byChannel := make(map[models.Channel]int)

	err := svc.store.Stream(ctx, criteria, func(rec models.CommunicationAuditRecord) error {
		count++
		byStatus[rec.Status]++
		byChannel[rec.Channel]++
		return nil
	})
	if err != nil {
		return 0, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Communication Audit Summary")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(6)
	if criteria.OrganizationID != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Organization: %s", criteria.OrganizationID))
		pdf.Ln(6)
	}
	if !criteria.From.IsZero() || !criteria.To.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Window: %s - %s",
			formatOrOpen(criteria.From), formatOrOpen(criteria.To)))
		pdf.Ln(6)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Total records: %d", count))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "By delivery status")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	for _, status := range []models.NotificationStatus{
		models.NotificationPending, models.NotificationSent, models.NotificationDelivered,
		models.NotificationRetrying, models.NotificationFailed, models.NotificationFailedFinal,
	} {
		if n, ok := byStatus[status]; ok {
			pdf.Cell(0, 6, fmt.Sprintf("  %s: %d", status, n))
			pdf.Ln(6)
		}
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "By channel")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	for _, ch := range []models.Channel{models.ChannelEmail, models.ChannelSMS} {
		if n, ok := byChannel[ch]; ok {
			pdf.Cell(0, 6, fmt.Sprintf("  %s: %d", ch, n))
			pdf.Ln(6)
		}
	}

	return count, pdf.OutputFileAndClose(path)
}

func formatOrOpen(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.UTC().Format(time.RFC3339)
}
