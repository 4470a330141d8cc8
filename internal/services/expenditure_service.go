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

// ExpenditureService records project spending. Only the project's assigned
// contractor may log an entry; reading is public.
type ExpenditureService struct {
	db        *sql.DB
	validator *validator.Validate
}

// CreateExpenditureRequest represents the expenditure payload
// @Description Expenditure creation request structure
type CreateExpenditureRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	BillURL     string  `json:"bill_url" validate:"required,url"` // evidence is mandatory
}

func NewExpenditureService(db *sql.DB) *ExpenditureService {
	return &ExpenditureService{
		db:        db,
		validator: validator.New(),
	}
}

// CreateExpenditure logs a spending entry for a project
// @Summary Log an expenditure
// @Description Contractor-only; every entry must carry a bill URL
// @Tags expenses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param request body CreateExpenditureRequest true "Expenditure fields"
// @Success 200 {object} models.Expenditure "Created expenditure"
// @Failure 400 {object} ErrorResponse "Validation failed or missing bill URL"
// @Failure 403 {object} ErrorResponse "Caller is not the project's contractor"
// @Failure 404 {object} ErrorResponse "Project not found"
// @Router /projects/{projectId}/expenditures [post]
func (s *ExpenditureService) CreateExpenditure(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	if !ok {
		SendErrorResponse(w, "Could not validate credentials", http.StatusUnauthorized, nil)
		return
	}

	projectID := chi.URLParam(r, "projectId")

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateExpenditureRequest
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

	var contractor sql.NullString
	err := s.db.QueryRow("SELECT contractor FROM projects WHERE id = $1", projectID).Scan(&contractor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[EXPENSE] Project lookup failed for %s: %v", projectID, err)
		SendErrorResponse(w, "Failed to log expenditure", http.StatusInternalServerError, nil)
		return
	}

	if contractor.String == "" || contractor.String != user.Phone {
		SendErrorResponse(w, "Unauthorized", http.StatusForbidden, nil)
		return
	}

	expenditure := models.Expenditure{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		BillURL:     req.BillURL,
		CreatedAt:   time.Now().UTC(),
	}

	_, err = s.db.Exec(
		`INSERT INTO expenditures (id, project_id, title, description, amount, bill_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		expenditure.ID, expenditure.ProjectID, expenditure.Title, expenditure.Description,
		expenditure.Amount, expenditure.BillURL, expenditure.CreatedAt)
	if err != nil {
		log.Printf("[EXPENSE] Creation failed: %v", err)
		SendErrorResponse(w, "Failed to log expenditure", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[EXPENSE] Expenditure %s logged against project %s", expenditure.ID, projectID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(expenditure)
}

// ListProjectExpenditures returns all expenditures for a project
// @Summary List project expenditures
// @Tags expenses
// @Produce json
// @Param projectId path string true "Project ID"
// @Success 200 {array} models.Expenditure
// @Router /projects/{projectId}/expenditures [get]
func (s *ExpenditureService) ListProjectExpenditures(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")

	rows, err := s.db.Query(
		"SELECT id, project_id, title, description, amount, bill_url, created_at FROM expenditures WHERE project_id = $1 ORDER BY created_at DESC",
		projectID)
	if err != nil {
		log.Printf("[EXPENSE] Listing failed for project %s: %v", projectID, err)
		SendErrorResponse(w, "Failed to fetch expenditures", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	expenditures := []models.Expenditure{}
	for rows.Next() {
		var e models.Expenditure
		var description sql.NullString
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Title, &description, &e.Amount, &e.BillURL, &e.CreatedAt); err != nil {
			log.Printf("[EXPENSE] Row scan failed: %v", err)
			SendErrorResponse(w, "Failed to fetch expenditures", http.StatusInternalServerError, nil)
			return
		}
		e.Description = description.String
		expenditures = append(expenditures, e)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(expenditures)
}
