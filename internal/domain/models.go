// Package domain contains the core domain models for the catalog ingestion
// pipeline.
package domain

import (
	"net/url"
	"strings"
	"time"
)

// Condition is the canonical listing condition. Every source string resolves
// to one of the three values; unmapped strings default to ConditionUsed.
type Condition string

const (
	ConditionNew         Condition = "new"
	ConditionRefurbished Condition = "refurbished"
	ConditionUsed        Condition = "used"
)

// IsValid reports whether c is a recognised condition.
func (c Condition) IsValid() bool {
	return c == ConditionNew || c == ConditionRefurbished || c == ConditionUsed
}

// Quality flags whether all expected fields were populated by an extraction.
type Quality string

const (
	QualityFull    Quality = "full"
	QualityPartial Quality = "partial"
)

// PayloadKind distinguishes structured adapter responses (API JSON, JSON-LD)
// from unstructured ones (raw HTML).
type PayloadKind string

const (
	PayloadStructured   PayloadKind = "structured"
	PayloadUnstructured PayloadKind = "unstructured"
)

// ListingRecord is the canonical extraction output after normalization.
type ListingRecord struct {
	Title        string    `json:"title"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	Condition    Condition `json:"condition"`
	Images       []string  `json:"images,omitempty"`
	Seller       string    `json:"seller,omitempty"`
	Marketplace  string    `json:"marketplace"`
	VendorItemID string    `json:"vendor_item_id,omitempty"`
	CPUModel     string    `json:"cpu_model,omitempty"`
	CPUID        string    `json:"cpu_id,omitempty"`
	RAMGB        int       `json:"ram_gb,omitempty"`
	StorageGB    int       `json:"storage_gb,omitempty"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	ModelNumber  string    `json:"model_number,omitempty"`
	Description  string    `json:"description,omitempty"`
	SourceURL    string    `json:"source_url"`
	Quality      Quality   `json:"quality"`
}

// CatalogListing is the persisted catalog entity. It is created on first
// successful ingest and mutated in place on every re-ingest that resolves to
// the same identity; this subsystem never hard-deletes it.
type CatalogListing struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Price         float64   `json:"price"`
	PreviousPrice *float64  `json:"previous_price,omitempty"`
	Currency      string    `json:"currency"`
	Condition     Condition `json:"condition"`
	Images        []string  `json:"images,omitempty"`
	Seller        string    `json:"seller,omitempty"`
	Marketplace   string    `json:"marketplace"`
	VendorItemID  string    `json:"vendor_item_id,omitempty"`
	ContentHash   string    `json:"content_hash"`
	CPUModel      string    `json:"cpu_model,omitempty"`
	CPUID         string    `json:"cpu_id,omitempty"`
	RAMGB         int       `json:"ram_gb,omitempty"`
	StorageGB     int       `json:"storage_gb,omitempty"`
	Manufacturer  string    `json:"manufacturer,omitempty"`
	ModelNumber   string    `json:"model_number,omitempty"`
	Description   string    `json:"description,omitempty"`
	SourceURL     string    `json:"source_url"`
	Provenance    string    `json:"provenance"`
	Quality       Quality   `json:"quality"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RawPayload retains one adapter response for debugging, bounded in size and
// garbage-collected after the retention window.
type RawPayload struct {
	ID          string      `json:"id"`
	ListingID   string      `json:"listing_id,omitempty"`
	AdapterName string      `json:"adapter_name"`
	PayloadKind PayloadKind `json:"payload_kind"`
	Payload     []byte      `json:"payload"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// JobKind distinguishes single-URL jobs from bulk imports.
type JobKind string

const (
	JobKindSingle JobKind = "single"
	JobKindBulk   JobKind = "bulk"
)

// JobPriority is the caller-declared urgency recorded on a job. Execution is
// FIFO across the shared pool; the priority travels with the job for
// consumers and audit.
type JobPriority string

const (
	PriorityNormal JobPriority = "normal"
	PriorityHigh   JobPriority = "high"
)

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	JobQueued   JobStatus = "queued"
	JobRunning  JobStatus = "running"
	JobComplete JobStatus = "complete"
	JobPartial  JobStatus = "partial"
	JobFailed   JobStatus = "failed"
)

// IsTerminal reports whether the status is final. Terminal statuses are
// authoritative and must never be overwritten.
func (s JobStatus) IsTerminal() bool {
	return s == JobComplete || s == JobPartial || s == JobFailed
}

// RowStatus is the lifecycle state of one URL within a job.
type RowStatus string

const (
	RowQueued   RowStatus = "queued"
	RowRunning  RowStatus = "running"
	RowComplete RowStatus = "complete"
	RowFailed   RowStatus = "failed"
)

// IsTerminal reports whether the row reached a final state.
func (s RowStatus) IsTerminal() bool {
	return s == RowComplete || s == RowFailed
}

// ImportJob tracks one logical import request. Single jobs are a degenerate
// one-row case of the same model.
type ImportJob struct {
	ID          string         `json:"id"`
	Kind        JobKind        `json:"kind"`
	Status      JobStatus      `json:"status"`
	Priority    JobPriority    `json:"priority"`
	ProgressPct int            `json:"progress_pct"`
	TotalURLs   int            `json:"total_urls"`
	Rows        []ImportJobRow `json:"rows,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ImportJobRow is the terminal record for one URL in a job.
type ImportJobRow struct {
	JobID      string    `json:"-"`
	RowIndex   int       `json:"row_index"`
	URL        string    `json:"url"`
	Status     RowStatus `json:"status"`
	ListingID  string    `json:"listing_id,omitempty"`
	Provenance string    `json:"provenance,omitempty"`
	Quality    Quality   `json:"quality,omitempty"`
	ErrorCode  string    `json:"error_code,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// AdapterHealthSample is a rolling-window aggregate of one adapter's behaviour.
type AdapterHealthSample struct {
	AdapterName          string    `json:"adapter_name"`
	SuccessCount         int64     `json:"success_count"`
	FailureCount         int64     `json:"failure_count"`
	P50LatencyMS         int64     `json:"p50_latency_ms"`
	P95LatencyMS         int64     `json:"p95_latency_ms"`
	FieldCompletenessPct float64   `json:"field_completeness_pct"`
	MeasuredAt           time.Time `json:"measured_at"`
}

const wwwPrefix = "www."

// ExtractDomain parses rawURL and returns the hostname with any "www." prefix
// removed. Returns "" when the URL cannot be parsed.
func ExtractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), wwwPrefix)
}
