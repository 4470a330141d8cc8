package models

import (
	"time"

	"github.com/lib/pq"
)

// Project statuses.
const (
	ProjectPending   = "pending"
	ProjectOngoing   = "ongoing"
	ProjectCompleted = "completed"
	ProjectHalted    = "halted"
)

// Project is a public infrastructure project tracked by the portal.
type Project struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	WardNum         int            `json:"ward_num"`
	District        string         `json:"district"`
	City            string         `json:"city"`
	TotalBudget     float64        `json:"total_budget"`
	BudgetUtilized  float64        `json:"budget_utilized"`
	TimeElapsedDays int            `json:"time_elapsed_days,omitempty"`
	Status          string         `json:"status"`
	Deadline        *time.Time     `json:"deadline,omitempty"`
	ImageURLs       pq.StringArray `json:"image_urls,omitempty" swaggertype:"array,string"`
	Fundraised      float64        `json:"fundraised"`
	Contractor      string         `json:"contractor,omitempty"` // phone of the assigned contractor
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`
}

// ProjectPatch is a partial update; nil fields are left untouched.
type ProjectPatch struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	WardNum         *int       `json:"ward_num,omitempty"`
	District        *string    `json:"district,omitempty"`
	City            *string    `json:"city,omitempty"`
	TotalBudget     *float64   `json:"total_budget,omitempty" validate:"omitempty,gte=0"`
	BudgetUtilized  *float64   `json:"budget_utilized,omitempty" validate:"omitempty,gte=0"`
	TimeElapsedDays *int       `json:"time_elapsed_days,omitempty" validate:"omitempty,gte=0"`
	Status          *string    `json:"status,omitempty" validate:"omitempty,oneof=pending ongoing completed halted"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	ImageURLs       *[]string  `json:"image_urls,omitempty"`
	Fundraised      *float64   `json:"fundraised,omitempty" validate:"omitempty,gte=0"`
	Contractor      *string    `json:"contractor,omitempty"`
}

// ApplyTo merges the set fields of the patch onto a copy of pr.
func (p ProjectPatch) ApplyTo(pr Project) Project {
	if p.Title != nil {
		pr.Title = *p.Title
	}
	if p.Description != nil {
		pr.Description = *p.Description
	}
	if p.WardNum != nil {
		pr.WardNum = *p.WardNum
	}
	if p.District != nil {
		pr.District = *p.District
	}
	if p.City != nil {
		pr.City = *p.City
	}
	if p.TotalBudget != nil {
		pr.TotalBudget = *p.TotalBudget
	}
	if p.BudgetUtilized != nil {
		pr.BudgetUtilized = *p.BudgetUtilized
	}
	if p.TimeElapsedDays != nil {
		pr.TimeElapsedDays = *p.TimeElapsedDays
	}
	if p.Status != nil {
		pr.Status = *p.Status
	}
	if p.Deadline != nil {
		pr.Deadline = p.Deadline
	}
	if p.ImageURLs != nil {
		pr.ImageURLs = pq.StringArray(*p.ImageURLs)
	}
	if p.Fundraised != nil {
		pr.Fundraised = *p.Fundraised
	}
	if p.Contractor != nil {
		pr.Contractor = *p.Contractor
	}
	return pr
}
