package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/viper"

	"github.com/civictrack/backend/internal/models"
)

const projectListCacheKey = "projects:all"
const projectListCacheTTL = 60 * time.Second

// ProjectService manages public infrastructure projects. The public listing
// is read-heavy, so it is cached in redis when a client is available; every
// mutation invalidates the cache.
type ProjectService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *validator.Validate
	baseURL   string
}

// CreateProjectRequest represents the project creation payload
// @Description Project creation request structure
type CreateProjectRequest struct {
	Title           string     `json:"title" validate:"required"`
	Description     string     `json:"description"`
	WardNum         int        `json:"ward_num" validate:"gte=0"`
	District        string     `json:"district" validate:"required"`
	City            string     `json:"city" validate:"required"`
	TotalBudget     float64    `json:"total_budget" validate:"gte=0"`
	BudgetUtilized  float64    `json:"budget_utilized" validate:"gte=0"`
	TimeElapsedDays int        `json:"time_elapsed_days" validate:"gte=0"`
	Status          string     `json:"status" validate:"omitempty,oneof=pending ongoing completed halted"`
	Deadline        *time.Time `json:"deadline"`
	ImageURLs       []string   `json:"image_urls"`
	Fundraised      float64    `json:"fundraised" validate:"gte=0"`
	Contractor      string     `json:"contractor"` // phone of the assigned contractor
}

func NewProjectService(db *sql.DB, redisClient *redis.Client) *ProjectService {
	viper.SetDefault("app.base_url", "http://localhost:8080")
	return &ProjectService{
		db:        db,
		redis:     redisClient,
		validator: validator.New(),
		baseURL:   viper.GetString("app.base_url"),
	}
}

const projectColumns = "id, title, description, ward_num, district, city, total_budget, budget_utilized, time_elapsed_days, status, deadline, image_urls, fundraised, contractor, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (models.Project, error) {
	var p models.Project
	var description, contractor sql.NullString
	var timeElapsed sql.NullInt64
	var deadline, updatedAt sql.NullTime
	err := row.Scan(&p.ID, &p.Title, &description, &p.WardNum, &p.District, &p.City,
		&p.TotalBudget, &p.BudgetUtilized, &timeElapsed, &p.Status, &deadline,
		pq.Array(&p.ImageURLs), &p.Fundraised, &contractor, &p.CreatedAt, &updatedAt)
	if err != nil {
		return models.Project{}, err
	}
	p.Description = description.String
	p.Contractor = contractor.String
	p.TimeElapsedDays = int(timeElapsed.Int64)
	if deadline.Valid {
		p.Deadline = &deadline.Time
	}
	if updatedAt.Valid {
		p.UpdatedAt = &updatedAt.Time
	}
	return p, nil
}

func (s *ProjectService) invalidateListCache(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, projectListCacheKey).Err(); err != nil {
		log.Printf("[PROJECT] Cache invalidation failed: %v", err)
	}
}

// CreateProject creates a new infrastructure project
// @Summary Create a project
// @Description Admin-only creation of a public infrastructure project
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateProjectRequest true "Project fields"
// @Success 200 {object} models.Project "Created project"
// @Failure 400 {object} ErrorResponse "Validation failed"
// @Failure 403 {object} ErrorResponse "Caller is not an admin"
// @Router /projects [post]
func (s *ProjectService) CreateProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateProjectRequest
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

	if req.Status == "" {
		req.Status = models.ProjectPending
	}

	project := models.Project{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Description:     req.Description,
		WardNum:         req.WardNum,
		District:        req.District,
		City:            req.City,
		TotalBudget:     req.TotalBudget,
		BudgetUtilized:  req.BudgetUtilized,
		TimeElapsedDays: req.TimeElapsedDays,
		Status:          req.Status,
		Deadline:        req.Deadline,
		ImageURLs:       pq.StringArray(req.ImageURLs),
		Fundraised:      req.Fundraised,
		Contractor:      req.Contractor,
		CreatedAt:       time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO projects (id, title, description, ward_num, district, city, total_budget, budget_utilized, time_elapsed_days, status, deadline, image_urls, fundraised, contractor, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		project.ID, project.Title, project.Description, project.WardNum, project.District,
		project.City, project.TotalBudget, project.BudgetUtilized, project.TimeElapsedDays,
		project.Status, project.Deadline, project.ImageURLs, project.Fundraised,
		project.Contractor, project.CreatedAt)
	if err != nil {
		log.Printf("[PROJECT] Creation failed: %v", err)
		SendErrorResponse(w, "Failed to create project", http.StatusInternalServerError, nil)
		return
	}

	s.invalidateListCache(r.Context())
	log.Printf("[PROJECT] Created project %s (%s)", project.ID, project.Title)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(project)
}

// ListProjects returns all projects
// @Summary List projects
// @Description Public listing of all projects, cached for 60 seconds
// @Tags projects
// @Produce json
// @Success 200 {array} models.Project "All projects"
// @Router /projects [get]
func (s *ProjectService) ListProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, projectListCacheKey).Bytes()
		if err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write(cached)
			return
		}
	}

	rows, err := s.db.Query("SELECT " + projectColumns + " FROM projects ORDER BY created_at DESC")
	if err != nil {
		log.Printf("[PROJECT] Listing failed: %v", err)
		SendErrorResponse(w, "Failed to fetch projects", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			log.Printf("[PROJECT] Row scan failed: %v", err)
			SendErrorResponse(w, "Failed to fetch projects", http.StatusInternalServerError, nil)
			return
		}
		projects = append(projects, project)
	}

	body, err := json.Marshal(projects)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch projects", http.StatusInternalServerError, nil)
		return
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, projectListCacheKey, body, projectListCacheTTL).Err(); err != nil {
			log.Printf("[PROJECT] Cache write failed: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// GetProject returns one project by id
// @Summary Get a project
// @Tags projects
// @Produce json
// @Param projectId path string true "Project ID"
// @Success 200 {object} models.Project
// @Failure 404 {object} ErrorResponse "Project not found"
// @Router /projects/{projectId} [get]
func (s *ProjectService) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")

	project, err := scanProject(s.db.QueryRow(
		"SELECT "+projectColumns+" FROM projects WHERE id = $1", projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[PROJECT] Fetch failed for %s: %v", projectID, err)
		SendErrorResponse(w, "Failed to fetch project", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(project)
}

// UpdateProject applies a partial update to a project
// @Summary Update a project
// @Description Admin-only partial update; omitted fields are left untouched
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param request body models.ProjectPatch true "Fields to change"
// @Success 200 {object} models.Project "Updated project"
// @Failure 400 {object} ErrorResponse "Validation failed"
// @Failure 403 {object} ErrorResponse "Caller is not an admin"
// @Failure 404 {object} ErrorResponse "Project not found"
// @Router /projects/{projectId} [put]
func (s *ProjectService) UpdateProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var patch models.ProjectPatch
	if err := dec.Decode(&patch); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.Struct(&patch); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	project, err := scanProject(s.db.QueryRow(
		"SELECT "+projectColumns+" FROM projects WHERE id = $1", projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[PROJECT] Fetch failed for %s: %v", projectID, err)
		SendErrorResponse(w, "Failed to fetch project", http.StatusInternalServerError, nil)
		return
	}

	project = patch.ApplyTo(project)
	now := time.Now().UTC()
	project.UpdatedAt = &now

	_, err = s.db.Exec(
		`UPDATE projects SET title = $1, description = $2, ward_num = $3, district = $4, city = $5,
		 total_budget = $6, budget_utilized = $7, time_elapsed_days = $8, status = $9, deadline = $10,
		 image_urls = $11, fundraised = $12, contractor = $13, updated_at = $14 WHERE id = $15`,
		project.Title, project.Description, project.WardNum, project.District, project.City,
		project.TotalBudget, project.BudgetUtilized, project.TimeElapsedDays, project.Status,
		project.Deadline, project.ImageURLs, project.Fundraised, project.Contractor,
		project.UpdatedAt, projectID)
	if err != nil {
		log.Printf("[PROJECT] Update failed for %s: %v", projectID, err)
		SendErrorResponse(w, "Failed to update project", http.StatusInternalServerError, nil)
		return
	}

	s.invalidateListCache(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(project)
}

// DeleteProject removes a project
// @Summary Delete a project
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Success 200 {object} object{detail=string}
// @Failure 403 {object} ErrorResponse "Caller is not an admin"
// @Failure 404 {object} ErrorResponse "Project not found"
// @Router /projects/{projectId} [delete]
func (s *ProjectService) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")

	res, err := s.db.Exec("DELETE FROM projects WHERE id = $1", projectID)
	if err != nil {
		log.Printf("[PROJECT] Deletion failed for %s: %v", projectID, err)
		SendErrorResponse(w, "Failed to delete project", http.StatusInternalServerError, nil)
		return
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	}

	s.invalidateListCache(r.Context())
	log.Printf("[PROJECT] Deleted project %s", projectID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"detail": "Project deleted successfully"})
}

// ProjectQR renders a signboard QR code linking to the project's public page
// @Summary Project QR code
// @Description PNG QR code encoding the public project URL, for printed signboards
// @Tags projects
// @Produce png
// @Param projectId path string true "Project ID"
// @Success 200 {file} binary "PNG image"
// @Failure 404 {object} ErrorResponse "Project not found"
// @Router /projects/{projectId}/qr [get]
func (s *ProjectService) ProjectQR(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")

	var exists bool
	if err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)", projectID).Scan(&exists); err != nil || !exists {
		SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	}

	qr, err := qrcode.New(s.baseURL+"/projects/"+projectID, qrcode.Medium)
	if err != nil {
		SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(buf.Bytes())
}
