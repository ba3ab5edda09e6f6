package audit

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"costume-portal/internal/core/domain/models"
)

func TestExportHeaderHonorsFlags(t *testing.T) {
	base := exportHeader(models.ExportOptions{})
	for _, col := range []string{"subject", "body", "error_detail", "metadata"} {
		for _, got := range base {
			if got == col {
				t.Errorf("column %q present with all flags off", col)
			}
		}
	}

	full := exportHeader(models.ExportOptions{IncludeContent: true, IncludeMetadata: true})
	if len(full) != len(base)+4 {
		t.Errorf("full header has %d columns, want %d", len(full), len(base)+4)
	}
}

func TestExportRowMatchesHeaderLength(t *testing.T) {
	rec := sampleRecords(1)[0]
	for _, opts := range []models.ExportOptions{
		{},
		{IncludeContent: true},
		{IncludeMetadata: true},
		{IncludeContent: true, IncludeMetadata: true},
	} {
		header := exportHeader(opts)
		row := exportRow(rec, opts)
		if len(header) != len(row) {
			t.Errorf("opts %+v: header %d columns, row %d", opts, len(header), len(row))
		}
	}
}

func TestFlattenMetadataSortsKeys(t *testing.T) {
	got := flattenMetadata(map[string]string{"zeta": "1", "alpha": "2", "mid": "3"})
	want := "alpha=2; mid=3; zeta=1"
	if got != want {
		t.Errorf("flattenMetadata = %q, want %q", got, want)
	}

	if flattenMetadata(nil) != "" {
		t.Error("empty metadata should flatten to empty string")
	}
}

func TestGenerateXLSXArtifact(t *testing.T) {
	store := &fakeAuditStore{records: sampleRecords(4)}
	svc := NewService(store, NewMemoryJobStore(), testConfig(t, 10))

	artifact, err := svc.generate(context.Background(), models.SearchCriteria{}, models.FormatXLSX, models.ExportOptions{IncludeMetadata: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if artifact.RecordCount != 4 {
		t.Errorf("record count = %d, want 4", artifact.RecordCount)
	}
	if !strings.HasSuffix(artifact.Path, ".xlsx") {
		t.Errorf("artifact path = %q", artifact.Path)
	}
	info, err := os.Stat(artifact.Path)
	if err != nil {
		t.Fatalf("artifact file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("artifact file is empty")
	}
}

func TestGeneratePDFArtifact(t *testing.T) {
	store := &fakeAuditStore{records: sampleRecords(2)}
	svc := NewService(store, NewMemoryJobStore(), testConfig(t, 10))

	artifact, err := svc.generate(context.Background(), models.SearchCriteria{OrganizationID: "org-1"}, models.FormatPDF, models.ExportOptions{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if artifact.RecordCount != 2 {
		t.Errorf("record count = %d, want 2", artifact.RecordCount)
	}
	info, err := os.Stat(artifact.Path)
	if err != nil {
		t.Fatalf("artifact file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("artifact file is empty")
	}
}

func TestArtifactExpirySetFromTTL(t *testing.T) {
	store := &fakeAuditStore{records: sampleRecords(1)}
	cfg := testConfig(t, 10)
	cfg.ArtifactTTL = 48 * time.Hour
	svc := NewService(store, NewMemoryJobStore(), cfg)

	artifact, err := svc.generate(context.Background(), models.SearchCriteria{}, models.FormatCSV, models.ExportOptions{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	ttl := artifact.ExpiresAt.Sub(artifact.GeneratedAt)
	if ttl != 48*time.Hour {
		t.Errorf("artifact ttl = %s, want 48h", ttl)
	}
}
