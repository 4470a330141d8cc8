package models

import (
	"time"

	"github.com/lib/pq"
)

// Issue statuses.
const (
	IssuePending  = "pending"
	IssueReviewed = "reviewed"
	IssueResolved = "resolved"
)

// Issue is a citizen report against a project. ReporterPhone is stored only
// when the reporter opted out of anonymity.
type Issue struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"project_id"`
	Reason        string         `json:"reason"`
	ProofURLs     pq.StringArray `json:"proof_urls,omitempty" swaggertype:"array,string"`
	ReporterPhone string         `json:"reporter_phone,omitempty"`
	Anonymous     bool           `json:"anonymous"`
	Status        string         `json:"status"` // pending / reviewed / resolved
	CreatedAt     time.Time      `json:"created_at"`
}
