package models

import "time"

// CommunicationAuditRecord is the queryable projection of a notification and
// its latest delivery outcome. Append-only: status is the only field updated
// after creation, and updates stop once the status is terminal.
type CommunicationAuditRecord struct {
	ID             string             `json:"id"`
	NotificationID string             `json:"notification_id"`
	OrganizationID string             `json:"organization_id"`
	OrderNumber    string             `json:"order_number"`
	Stage          Stage              `json:"stage"`
	UserID         string             `json:"user_id"`
	Channel        Channel            `json:"channel"`
	Recipient      string             `json:"recipient"`
	Subject        string             `json:"subject"`
	Body           string             `json:"body"`
	Status         NotificationStatus `json:"status"`
	ErrorDetail    string             `json:"error_detail,omitempty"`
	Metadata       map[string]string  `json:"metadata,omitempty"` // technical detail: provider ids, source ip, user agent
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// SearchCriteria filters audit records. Zero values mean "no filter".
type SearchCriteria struct {
	OrganizationID string             `json:"organization_id"`
	OrderNumber    string             `json:"order_number"`
	From           time.Time          `json:"from"`
	To             time.Time          `json:"to"`
	Channel        Channel            `json:"channel"`
	Status         NotificationStatus `json:"status"`
	FreeText       string             `json:"free_text"` // matched against subject and body
	Page           int                `json:"page"`
	PageSize       int                `json:"page_size"`
}

// SearchResult is one page of audit records plus totals for the whole
// filtered set.
type SearchResult struct {
	Records       []CommunicationAuditRecord `json:"records"`
	Total         int                        `json:"total"`
	StatusSummary map[NotificationStatus]int `json:"status_summary"`
}

// AuditSummary aggregates a time window for dashboards.
type AuditSummary struct {
	OrganizationID string                     `json:"organization_id"`
	From           time.Time                  `json:"from"`
	To             time.Time                  `json:"to"`
	Total          int                        `json:"total"`
	ByStatus       map[NotificationStatus]int `json:"by_status"`
	ByChannel      map[Channel]int            `json:"by_channel"`
}

// ExportFormat selects the artifact type produced by an export.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatPDF  ExportFormat = "pdf"
)

// ExportOptions gate what lands in the artifact.
type ExportOptions struct {
	IncludeContent  bool `json:"include_content"`  // full message bodies
	IncludeMetadata bool `json:"include_metadata"` // provider ids, ip, user agent
}

// ExportJobStatus is the lifecycle of an asynchronous export.
type ExportJobStatus string

const (
	JobPending    ExportJobStatus = "pending"
	JobProcessing ExportJobStatus = "processing"
	JobCompleted  ExportJobStatus = "completed"
	JobFailed     ExportJobStatus = "failed"
)

// ExportJob tracks one background export from request to artifact.
type ExportJob struct {
	ID        string          `json:"id"`
	Criteria  SearchCriteria  `json:"criteria"`
	Format    ExportFormat    `json:"format"`
	Options   ExportOptions   `json:"options"`
	Status    ExportJobStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
	Artifact  *ExportArtifact `json:"artifact,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ExportArtifact references a generated file.
type ExportArtifact struct {
	Path        string       `json:"path"`
	Format      ExportFormat `json:"format"`
	RecordCount int          `json:"record_count"`
	GeneratedAt time.Time    `json:"generated_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// ExportResult is returned by the export entry point: either an inline
// artifact (small result sets) or a job id to poll.
type ExportResult struct {
	Artifact *ExportArtifact `json:"artifact,omitempty"`
	JobID    string          `json:"job_id,omitempty"`
}
