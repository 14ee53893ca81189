package pipeline

import (
	"time"

	"github.com/labsite/pubsync/internal/storage"
)

// Report is the outcome of one run.
type Report struct {
	RunID      string            `json:"run_id,omitempty"`
	DryRun     bool              `json:"dry_run"`
	SkipPDF    bool              `json:"skip_pdf"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Summary    storage.RunCounts `json:"summary"`

	New            []NewItem       `json:"new_publications"`
	NewGroups      []int           `json:"new_year_groups,omitempty"`
	Failures       []Failure       `json:"pdf_failures"`
	NearDuplicates []NearDuplicate `json:"near_duplicates,omitempty"`
	PDFCount       int             `json:"pdf_count"`
}

// NewItem is a publication added to the store.
type NewItem struct {
	Year    int    `json:"year,omitempty"`
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Venue   string `json:"venue"`
	Link    string `json:"link,omitempty"`
	PDF     string `json:"pdf,omitempty"`
}

// Failure is a publication whose PDF could not be acquired.
type Failure struct {
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
	Reason string `json:"reason"`
}

// NearDuplicate pairs a new title with a stored one it closely resembles.
type NearDuplicate struct {
	Title    string  `json:"title"`
	Existing string  `json:"existing"`
	Score    float64 `json:"score"`
}
