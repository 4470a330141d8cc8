package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/civictrack/backend/internal/models"
)

// MilestoneService tracks planned stages of a project. Admins define
// milestones; the project's contractor (or an admin) reports progress.
type MilestoneService struct {
	db        *sql.DB
	validator *validator.Validate
}

// CreateMilestoneRequest represents the milestone creation payload
// @Description Milestone creation request structure
type CreateMilestoneRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateMilestoneStatusRequest represents the progress update payload
// @Description Milestone status update structure
type UpdateMilestoneStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress completed"`
}

func NewMilestoneService(db *sql.DB) *MilestoneService {
	return &MilestoneService{
		db:        db,
		validator: validator.New(),
	}
}

// CreateMilestone adds a milestone to a project
// @Summary Create a milestone
// @Description Admin-only definition of a project stage
// @Tags milestones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param request body CreateMilestoneRequest true "Milestone fields"
// @Success 200 {object} models.Milestone "Created milestone"
// @Failure 400 {object} ErrorResponse "Validation failed"
// @Failure 403 {object} ErrorResponse "Caller is not an admin"
// @Failure 404 {object} ErrorResponse "Project not found"
// @Router /projects/{projectId}/milestones [post]
func (s *MilestoneService) CreateMilestone(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateMilestoneRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var exists bool
	if err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)", projectID).Scan(&exists); err != nil || !exists {
		SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	}

	milestone := models.Milestone{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Status:      models.MilestonePending,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO milestones (id, project_id, title, description, due_date, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		milestone.ID, milestone.ProjectID, milestone.Title, milestone.Description,
		milestone.DueDate, milestone.Status, milestone.CreatedAt)
	if err != nil {
		log.Printf("[MILESTONE] Creation failed: %v", err)
		SendErrorResponse(w, "Failed to create milestone", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[MILESTONE] Milestone %s created for project %s", milestone.ID, projectID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(milestone)
}

// ListProjectMilestones returns all milestones for a project
// @Summary List project milestones
// @Tags milestones
// @Produce json
// @Param projectId path string true "Project ID"
// @Success 200 {array} models.Milestone
// @Router /projects/{projectId}/milestones [get]
func (s *MilestoneService) ListProjectMilestones(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")

	rows, err := s.db.Query(
		"SELECT id, project_id, title, description, due_date, status, created_at FROM milestones WHERE project_id = $1 ORDER BY created_at",
		projectID)
	if err != nil {
		log.Printf("[MILESTONE] Listing failed for project %s: %v", projectID, err)
		SendErrorResponse(w, "Failed to fetch milestones", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	milestones := []models.Milestone{}
	for rows.Next() {
		var m models.Milestone
		var description sql.NullString
		var dueDate sql.NullTime
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Title, &description, &dueDate, &m.Status, &m.CreatedAt); err != nil {
			log.Printf("[MILESTONE] Row scan failed: %v", err)
			SendErrorResponse(w, "Failed to fetch milestones", http.StatusInternalServerError, nil)
			return
		}
		m.Description = description.String
		if dueDate.Valid {
			m.DueDate = &dueDate.Time
		}
		milestones = append(milestones, m)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(milestones)
}

// UpdateMilestoneStatus reports milestone progress
// @Summary Update milestone status
// @Description Allowed for the project's contractor or an admin
// @Tags milestones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param milestoneId path string true "Milestone ID"
// @Param request body UpdateMilestoneStatusRequest true "New status"
// @Success 200 {object} models.Milestone "Updated milestone"
// @Failure 400 {object} ErrorResponse "Invalid status"
// @Failure 403 {object} ErrorResponse "Caller is neither contractor nor admin"
// @Failure 404 {object} ErrorResponse "Milestone not found"
// @Router /milestones/{milestoneId}/status [put]
func (s *MilestoneService) UpdateMilestoneStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	if !ok {
		SendErrorResponse(w, "Could not validate credentials", http.StatusUnauthorized, nil)
		return
	}

	milestoneID := chi.URLParam(r, "milestoneId")

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req UpdateMilestoneStatusRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var projectID string
	var contractor sql.NullString
	err := s.db.QueryRow(
		"SELECT m.project_id, p.contractor FROM milestones m JOIN projects p ON p.id = m.project_id WHERE m.id = $1",
		milestoneID,
	).Scan(&projectID, &contractor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			SendErrorResponse(w, "Milestone not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[MILESTONE] Lookup failed for %s: %v", milestoneID, err)
		SendErrorResponse(w, "Failed to update milestone", http.StatusInternalServerError, nil)
		return
	}

	if !user.Admin && (contractor.String == "" || contractor.String != user.Phone) {
		SendErrorResponse(w, "Unauthorized", http.StatusForbidden, nil)
		return
	}

	var m models.Milestone
	var description sql.NullString
	var dueDate sql.NullTime
	err = s.db.QueryRow(
		"UPDATE milestones SET status = $1 WHERE id = $2 RETURNING id, project_id, title, description, due_date, status, created_at",
		req.Status, milestoneID,
	).Scan(&m.ID, &m.ProjectID, &m.Title, &description, &dueDate, &m.Status, &m.CreatedAt)
	if err != nil {
		log.Printf("[MILESTONE] Status update failed for %s: %v", milestoneID, err)
		SendErrorResponse(w, "Failed to update milestone", http.StatusInternalServerError, nil)
		return
	}
	m.Description = description.String
	if dueDate.Valid {
		m.DueDate = &dueDate.Time
	}

	log.Printf("[MILESTONE] Milestone %s status set to %s", milestoneID, req.Status)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}
