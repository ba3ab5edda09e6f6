package audit

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"costume-portal/internal/core/domain/models"
)

type fakeAuditStore struct {
	records      []models.CommunicationAuditRecord
	count        int
	lastCriteria models.SearchCriteria
}

func (f *fakeAuditStore) Append(ctx context.Context, rec models.CommunicationAuditRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeAuditStore) UpdateStatus(ctx context.Context, notificationID string, status models.NotificationStatus, errorDetail string) error {
	return nil
}

func (f *fakeAuditStore) Search(ctx context.Context, criteria models.SearchCriteria) (models.SearchResult, error) {
	f.lastCriteria = criteria
	return models.SearchResult{Records: f.records, Total: len(f.records)}, nil
}

func (f *fakeAuditStore) Summarize(ctx context.Context, orgID string, from, to time.Time) (models.AuditSummary, error) {
	return models.AuditSummary{OrganizationID: orgID, From: from, To: to, Total: len(f.records)}, nil
}

func (f *fakeAuditStore) Count(ctx context.Context, criteria models.SearchCriteria) (int, error) {
	if f.count > 0 {
		return f.count, nil
	}
	return len(f.records), nil
}

func (f *fakeAuditStore) Stream(ctx context.Context, criteria models.SearchCriteria, fn func(models.CommunicationAuditRecord) error) error {
	for _, rec := range f.records {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func sampleRecords(n int) []models.CommunicationAuditRecord {
	records := make([]models.CommunicationAuditRecord, n)
	for i := range records {
		records[i] = models.CommunicationAuditRecord{
			ID:             "rec-" + string(rune('a'+i)),
			NotificationID: "n-" + string(rune('a'+i)),
			OrganizationID: "org-1",
			OrderNumber:    "CG-1042",
			Stage:          models.StageSewing,
			UserID:         "anna",
			Channel:        models.ChannelEmail,
			Recipient:      "anna@example.com",
			Subject:        "Order CG-1042: now in Sewing",
			Body:           "Your costume order CG-1042 has reached the Sewing stage.",
			Status:         models.NotificationSent,
			Metadata:       map[string]string{"provider": "console", "ip": "10.0.0.1"},
			CreatedAt:      time.Now().UTC(),
		}
	}
	return records
}

func testConfig(t *testing.T, asyncThreshold int) ExportConfig {
	t.Helper()
	return ExportConfig{
		AsyncThreshold: asyncThreshold,
		MaxRecords:     100,
		ArtifactDir:    t.TempDir(),
		ArtifactTTL:    time.Hour,
		JobTimeout:     time.Minute,
	}
}

func TestSearchNormalizesPaging(t *testing.T) {
	store := &fakeAuditStore{}
	svc := NewService(store, NewMemoryJobStore(), testConfig(t, 10))

	if _, err := svc.Search(context.Background(), models.SearchCriteria{Page: -1, PageSize: 1000}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if store.lastCriteria.Page != 1 {
		t.Errorf("page = %d, want 1", store.lastCriteria.Page)
	}
	if store.lastCriteria.PageSize != 200 {
		t.Errorf("page size = %d, want capped to 200", store.lastCriteria.PageSize)
	}

	if _, err := svc.Search(context.Background(), models.SearchCriteria{}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if store.lastCriteria.PageSize != 20 {
		t.Errorf("default page size = %d, want 20", store.lastCriteria.PageSize)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := NewService(&fakeAuditStore{}, NewMemoryJobStore(), testConfig(t, 10))

	_, err := svc.Export(context.Background(), models.SearchCriteria{}, "docx", models.ExportOptions{})
	if !errors.Is(err, models.ErrorValidationFailed) {
		t.Errorf("err = %v, want ErrorValidationFailed", err)
	}
}

func TestExportRejectsOversizedSets(t *testing.T) {
	store := &fakeAuditStore{count: 101}
	svc := NewService(store, NewMemoryJobStore(), testConfig(t, 10))

	_, err := svc.Export(context.Background(), models.SearchCriteria{}, models.FormatCSV, models.ExportOptions{})
	if !errors.Is(err, models.ErrorExportTooLarge) {
		t.Errorf("err = %v, want ErrorExportTooLarge", err)
	}
}

func TestExportSmallSetRunsInline(t *testing.T) {
	store := &fakeAuditStore{records: sampleRecords(3)}
	svc := NewService(store, NewMemoryJobStore(), testConfig(t, 10))

	result, err := svc.Export(context.Background(), models.SearchCriteria{}, models.FormatCSV, models.ExportOptions{IncludeContent: true})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if result.JobID != "" {
		t.Errorf("inline export returned job id %q", result.JobID)
	}
	if result.Artifact == nil {
		t.Fatal("inline export returned no artifact")
	}
	if result.Artifact.RecordCount != 3 {
		t.Errorf("record count = %d, want 3", result.Artifact.RecordCount)
	}

	data, err := os.ReadFile(result.Artifact.Path)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "subject") {
		t.Error("includeContent export missing subject column")
	}
	if !strings.Contains(content, "Sewing stage") {
		t.Error("includeContent export missing body text")
	}
	if strings.Contains(content, "metadata") {
		t.Error("metadata column present without includeMetadata")
	}
}

func TestExportLargeSetBecomesJob(t *testing.T) {
	store := &fakeAuditStore{records: sampleRecords(5), count: 50}
	jobs := NewMemoryJobStore()
	cfg := testConfig(t, 10)
	svc := NewService(store, jobs, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartWorkers(ctx, 1)

	result, err := svc.Export(ctx, models.SearchCriteria{}, models.FormatCSV, models.ExportOptions{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if result.JobID == "" {
		t.Fatal("large export did not return a job id")
	}
	if result.Artifact != nil {
		t.Error("large export returned an inline artifact")
	}

	deadline := time.Now().Add(2 * time.Second)
	var job models.ExportJob
	for {
		job, err = svc.JobStatus(ctx, result.JobID)
		if err != nil {
			t.Fatalf("JobStatus: %v", err)
		}
		if job.Status == models.JobCompleted || job.Status == models.JobFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in status %s", job.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if job.Status != models.JobCompleted {
		t.Fatalf("job status = %s (%s), want completed", job.Status, job.Error)
	}
	if job.Artifact == nil || job.Artifact.RecordCount != 5 {
		t.Errorf("job artifact = %+v", job.Artifact)
	}
	if _, err := os.Stat(job.Artifact.Path); err != nil {
		t.Errorf("artifact file missing: %v", err)
	}
}

func TestJobStatusUnknownJob(t *testing.T) {
	svc := NewService(&fakeAuditStore{}, NewMemoryJobStore(), testConfig(t, 10))

	_, err := svc.JobStatus(context.Background(), "nope")
	if !errors.Is(err, models.ErrorJobNotFound) {
		t.Errorf("err = %v, want ErrorJobNotFound", err)
	}
}

func TestExportIgnoresRequestPaging(t *testing.T) {
	store := &fakeAuditStore{records: sampleRecords(2)}
	svc := NewService(store, NewMemoryJobStore(), testConfig(t, 10))

	result, err := svc.Export(context.Background(), models.SearchCriteria{Page: 7, PageSize: 1}, models.FormatCSV, models.ExportOptions{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	// All matching records land in the artifact regardless of paging.
	if result.Artifact.RecordCount != 2 {
		t.Errorf("record count = %d, want 2", result.Artifact.RecordCount)
	}
}
