package models

import "time"

// Expenditure is a spending entry logged by a project's contractor. Every
// entry must carry a bill URL as evidence.
type Expenditure struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Amount      float64   `json:"amount"`
	BillURL     string    `json:"bill_url"`
	CreatedAt   time.Time `json:"created_at"`
}
