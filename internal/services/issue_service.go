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
	"github.com/lib/pq"

	"github.com/civictrack/backend/internal/models"
)

// IssueService handles citizen reports against projects. Reports may be
// anonymous, in which case no reporter identity is stored at all.
type IssueService struct {
	db        *sql.DB
	validator *validator.Validate
}

// CreateIssueRequest represents the issue report payload
// @Description Issue report request structure
type CreateIssueRequest struct {
	Reason    string   `json:"reason" validate:"required"` // Description of the issue
	ProofURLs []string `json:"proof_urls"`                 // Optional evidence links
	Anonymous bool     `json:"anonymous"`                  // Omit reporter identity when true
}

// UpdateIssueStatusRequest represents the moderation payload
// @Description Issue status update structure
type UpdateIssueStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending reviewed resolved"`
}

func NewIssueService(db *sql.DB) *IssueService {
	return &IssueService{
		db:        db,
		validator: validator.New(),
	}
}

func (s *IssueService) projectExists(projectID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)", projectID).Scan(&exists)
	return exists, err
}

// CreateIssue files a report against a project
// @Summary Report an issue
// @Description File an issue against a project; anonymous reports omit the reporter's phone
// @Tags issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param request body CreateIssueRequest true "Issue report"
// @Success 200 {object} models.Issue "Created issue"
// @Failure 400 {object} ErrorResponse "Validation failed"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Project not found"
// @Router /projects/{projectId}/issues [post]
func (s *IssueService) CreateIssue(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	if !ok {
		SendErrorResponse(w, "Could not validate credentials", http.StatusUnauthorized, nil)
		return
	}

	projectID := chi.URLParam(r, "projectId")

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateIssueRequest
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

	exists, err := s.projectExists(projectID)
	if err != nil {
		log.Printf("[ISSUE] Project lookup failed for %s: %v", projectID, err)
		SendErrorResponse(w, "Failed to file issue", http.StatusInternalServerError, nil)
		return
	}
	if !exists {
		SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	}

	issue := models.Issue{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Reason:    req.Reason,
		ProofURLs: pq.StringArray(req.ProofURLs),
		Anonymous: req.Anonymous,
		Status:    models.IssuePending,
		CreatedAt: time.Now().UTC(),
	}
	if !req.Anonymous {
		issue.ReporterPhone = user.Phone
	}

	_, err = s.db.Exec(
		`INSERT INTO issues (id, project_id, reason, proof_urls, reporter_phone, anonymous, status, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)`,
		issue.ID, issue.ProjectID, issue.Reason, issue.ProofURLs, issue.ReporterPhone,
		issue.Anonymous, issue.Status, issue.CreatedAt)
	if err != nil {
		log.Printf("[ISSUE] Creation failed: %v", err)
		SendErrorResponse(w, "Failed to file issue", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ISSUE] Issue %s filed against project %s (anonymous=%v)", issue.ID, projectID, issue.Anonymous)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(issue)
}

// ListProjectIssues returns all issues for a project
// @Summary List project issues
// @Tags issues
// @Produce json
// @Param projectId path string true "Project ID"
// @Success 200 {array} models.Issue
// @Failure 404 {object} ErrorResponse "Project not found"
// @Router /projects/{projectId}/issues [get]
func (s *IssueService) ListProjectIssues(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")

	exists, err := s.projectExists(projectID)
	if err != nil {
		log.Printf("[ISSUE] Project lookup failed for %s: %v", projectID, err)
		SendErrorResponse(w, "Failed to fetch issues", http.StatusInternalServerError, nil)
		return
	}
	if !exists {
		SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	}

	rows, err := s.db.Query(
		"SELECT id, project_id, reason, proof_urls, reporter_phone, anonymous, status, created_at FROM issues WHERE project_id = $1 ORDER BY created_at DESC",
		projectID)
	if err != nil {
		log.Printf("[ISSUE] Listing failed for project %s: %v", projectID, err)
		SendErrorResponse(w, "Failed to fetch issues", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	issues := []models.Issue{}
	for rows.Next() {
		var issue models.Issue
		var reporter sql.NullString
		if err := rows.Scan(&issue.ID, &issue.ProjectID, &issue.Reason, pq.Array(&issue.ProofURLs),
			&reporter, &issue.Anonymous, &issue.Status, &issue.CreatedAt); err != nil {
			log.Printf("[ISSUE] Row scan failed: %v", err)
			SendErrorResponse(w, "Failed to fetch issues", http.StatusInternalServerError, nil)
			return
		}
		issue.ReporterPhone = reporter.String
		issues = append(issues, issue)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(issues)
}

// UpdateIssueStatus moderates an issue
// @Summary Update issue status
// @Description Admin-only transition between pending, reviewed, and resolved
// @Tags issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param issueId path string true "Issue ID"
// @Param request body UpdateIssueStatusRequest true "New status"
// @Success 200 {object} models.Issue "Updated issue"
// @Failure 400 {object} ErrorResponse "Invalid status"
// @Failure 403 {object} ErrorResponse "Caller is not an admin"
// @Failure 404 {object} ErrorResponse "Issue not found"
// @Router /issues/{issueId}/status [put]
func (s *IssueService) UpdateIssueStatus(w http.ResponseWriter, r *http.Request) {
	issueID := chi.URLParam(r, "issueId")

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req UpdateIssueStatusRequest
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

	var issue models.Issue
	var reporter sql.NullString
	err := s.db.QueryRow(
		"UPDATE issues SET status = $1 WHERE id = $2 RETURNING id, project_id, reason, proof_urls, reporter_phone, anonymous, status, created_at",
		req.Status, issueID,
	).Scan(&issue.ID, &issue.ProjectID, &issue.Reason, pq.Array(&issue.ProofURLs),
		&reporter, &issue.Anonymous, &issue.Status, &issue.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			SendErrorResponse(w, "Issue not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[ISSUE] Status update failed for %s: %v", issueID, err)
		SendErrorResponse(w, "Failed to update issue", http.StatusInternalServerError, nil)
		return
	}
	issue.ReporterPhone = reporter.String

	log.Printf("[ISSUE] Issue %s status set to %s", issueID, req.Status)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(issue)
}
