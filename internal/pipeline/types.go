// Package pipeline defines core types shared across subsystems.
package pipeline

import (
	"regexp"
	"time"
)

// DateLayout is the canonical wire format for gazette dates.
const DateLayout = "2006-01-02"

// TaskStatus represents the lifecycle state of a date task.
type TaskStatus string

// Task status values persisted in the progress snapshot.
const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskFailed     TaskStatus = "failed"
)

// DateTask tracks one gazette date through the crawl pipeline. It is mutated
// only by the worker that owns it and is immutable once done.
type DateTask struct {
	Date              string     `json:"date"`
	Status            TaskStatus `json:"status"`
	OwnerWorkerID     int        `json:"owner_worker_id,omitempty"`
	StartTime         *time.Time `json:"start_time,omitempty"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	PublicationsFound int        `json:"publications_found"`
	Error             string     `json:"error,omitempty"`
	RetryCount        int        `json:"retry_count"`
}

// WorkerState is the coarse state reported by each worker.
type WorkerState string

// Worker states persisted in the progress snapshot.
const (
	WorkerIdle      WorkerState = "idle"
	WorkerWorking   WorkerState = "working"
	WorkerCompleted WorkerState = "completed"
	WorkerError     WorkerState = "error"
)

// WorkerStatus is updated only by its own worker and read by monitors.
type WorkerStatus struct {
	WorkerID          int         `json:"worker_id"`
	CurrentDate       string      `json:"current_date,omitempty"`
	DatesProcessed    int         `json:"dates_processed"`
	TotalPublications int         `json:"total_publications"`
	State             WorkerState `json:"state"`
}

// AmountKind labels what a monetary value represents.
type AmountKind string

// Amount kinds extracted from publication text.
const (
	AmountGross        AmountKind = "gross"
	AmountNet          AmountKind = "net"
	AmountInterest     AmountKind = "interest"
	AmountAttorneyFees AmountKind = "attorney_fees"
)

// Source identifies which extraction contributed a field.
type Source string

// Field provenance values.
const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
)

// Amount is a monetary value in integer cents. Money is never represented
// as floating point at any stage; an absent amount is simply not present
// in the slice (absence is meaningful, zero is a real value).
type Amount struct {
	Kind   AmountKind `json:"kind"`
	Cents  int64      `json:"cents"`
	Source Source     `json:"source,omitempty"`
}

// Lawyer identifies an attorney mentioned in a publication. Identity is the
// OAB registration number when present, otherwise the normalized name.
type Lawyer struct {
	Name      string   `json:"name"`
	OABNumber string   `json:"oab_number,omitempty"`
	OABState  string   `json:"oab_state,omitempty"`
	Sources   []Source `json:"sources,omitempty"`
}

// PageRange records which source-document pages a publication came from.
type PageRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// RawPublication is the structured record extracted from merged page text.
// Immutable once created; fields other than ProcessNumber may be empty when
// the text did not yield them (the consolidator may fill gaps from the
// secondary source).
type RawPublication struct {
	ProcessNumber     string    `json:"process_number"`
	Date              string    `json:"date,omitempty"`
	Authors           []string  `json:"authors,omitempty"`
	Defendant         string    `json:"defendant,omitempty"`
	Lawyers           []Lawyer  `json:"lawyers,omitempty"`
	Amounts           []Amount  `json:"amounts,omitempty"`
	RawContent        string    `json:"raw_content"`
	SourcePageRange   PageRange `json:"source_page_range"`
	ProcessSpansPages bool      `json:"process_spans_pages"`
}

// SecondaryRecord is the per-case lookup result from the secondary portal.
type SecondaryRecord struct {
	ProcessNumber    string   `json:"process_number"`
	PublicationDate  string   `json:"publication_date,omitempty"`
	AvailabilityDate string   `json:"availability_date,omitempty"`
	Lawyers          []Lawyer `json:"lawyers,omitempty"`
	Amounts          []Amount `json:"amounts,omitempty"`
}

// Confidence grades how well a publication was enriched.
type Confidence string

// Confidence values.
const (
	ConfidenceHigh     Confidence = "high"
	ConfidenceDegraded Confidence = "degraded"
)

// EnrichedPublication is the terminal artifact handed to persistence. It is
// built exactly once per process number, after consolidation completes.
type EnrichedPublication struct {
	ProcessNumber    string     `json:"process_number"`
	PublicationDate  string     `json:"publication_date,omitempty"`
	AvailabilityDate string     `json:"availability_date,omitempty"`
	Authors          []string   `json:"authors,omitempty"`
	Defendant        string     `json:"defendant,omitempty"`
	Lawyers          []Lawyer   `json:"lawyers,omitempty"`
	Amounts          []Amount   `json:"amounts,omitempty"`
	Content          string     `json:"content"`
	Confidence       Confidence `json:"confidence"`
}

// ResultLink points at one gazette document returned by a search.
type ResultLink struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

// Document is a fetched gazette document split into rendered page texts.
type Document struct {
	Link  ResultLink
	Pages []string
}

// QueueItem wraps a date ready for a worker to process.
type QueueItem struct {
	Date    string
	Attempt int
}

// RunSummary reports the outcome of a full orchestrator run.
type RunSummary struct {
	DatesDone           int `json:"dates_done"`
	DatesFailed         int `json:"dates_failed"`
	Retries             int `json:"retries"`
	PublicationsFound   int `json:"publications_found"`
	PublicationsSkipped int `json:"publications_skipped"`
	Enriched            int `json:"enriched"`
	Degraded            int `json:"degraded"`
}

// processNumberRe matches the canonical case identifier
// NNNNNNN-DD.YYYY.J.TR.OOOO anywhere in text.
var processNumberRe = regexp.MustCompile(`\d{7}-\d{2}\.\d{4}\.\d\.\d{2}\.\d{4}`)

// ProcessNumberPattern exposes the canonical matcher to parsers.
func ProcessNumberPattern() *regexp.Regexp {
	return processNumberRe
}

// ValidProcessNumber reports whether s is exactly one canonical case number.
func ValidProcessNumber(s string) bool {
	m := processNumberRe.FindString(s)
	return m == s && s != ""
}
