package models

import "time"

// Milestone statuses.
const (
	MilestonePending    = "pending"
	MilestoneInProgress = "in_progress"
	MilestoneCompleted  = "completed"
)

// Milestone is a planned stage of a project's execution.
type Milestone struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      string     `json:"status"` // pending / in_progress / completed
	CreatedAt   time.Time  `json:"created_at"`
}
