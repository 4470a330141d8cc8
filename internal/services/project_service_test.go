package services

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/civictrack/backend/internal/models"
)

func projectRouter(db *sql.DB, redisClient *redis.Client) http.Handler {
	service := NewProjectService(db, redisClient)

	r := chi.NewRouter()
	r.Post("/projects", service.CreateProject)
	r.Get("/projects", service.ListProjects)
	r.Get("/projects/{projectId}", service.GetProject)
	r.Put("/projects/{projectId}", service.UpdateProject)
	r.Delete("/projects/{projectId}", service.DeleteProject)
	r.Get("/projects/{projectId}/qr", service.ProjectQR)
	return r
}

func projectRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "ward_num", "district", "city",
		"total_budget", "budget_utilized", "time_elapsed_days", "status",
		"deadline", "image_urls", "fundraised", "contractor", "created_at", "updated_at",
	})
}

func TestProjectService_CreateProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	router := projectRouter(db, nil)

	t.Run("creates a project", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO projects").
			WillReturnResult(sqlmock.NewResult(0, 1))

		body := []byte(`{"title":"Ward Road Upgrade","district":"Kathmandu","city":"KMC","ward_num":4,"total_budget":5000000}`)
		r := httptest.NewRequest("POST", "/projects", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response models.Project
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.NotEmpty(t, response.ID)
		assert.Equal(t, "Ward Road Upgrade", response.Title)
		assert.Equal(t, models.ProjectPending, response.Status)
	})

	t.Run("missing title", func(t *testing.T) {
		body := []byte(`{"district":"Kathmandu","city":"KMC"}`)
		r := httptest.NewRequest("POST", "/projects", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid status value", func(t *testing.T) {
		body := []byte(`{"title":"T","district":"D","city":"C","status":"abandoned"}`)
		r := httptest.NewRequest("POST", "/projects", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		body := []byte(`{"title":"T","district":"D","city":"C","surprise":true}`)
		r := httptest.NewRequest("POST", "/projects", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProjectService_ListProjects(t *testing.T) {
	t.Run("serves from cache when populated", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		cached := `[{"id":"p1","title":"Cached Road"}]`
		redisMock.ExpectGet("projects:all").SetVal(cached)

		router := projectRouter(db, redisClient)

		r := httptest.NewRequest("GET", "/projects", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, cached, w.Body.String())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("falls through to the database and repopulates the cache", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet("projects:all").RedisNil()

		created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery("SELECT (.+) FROM projects ORDER BY created_at DESC").
			WillReturnRows(projectRows().
				AddRow("p1", "Ward Road Upgrade", "Blacktopping", 4, "Kathmandu", "KMC",
					5000000.0, 1200000.0, 90, "ongoing", nil, "{}", 0.0, "9800000005", created, nil))

		router := projectRouter(db, redisClient)

		r := httptest.NewRequest("GET", "/projects", nil)
		w := httptest.NewRecorder()

		// The cache write uses the marshalled body; accept whatever was stored.
		redisMock.Regexp().ExpectSet("projects:all", `.*`, 60*time.Second).SetVal("OK")

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response []models.Project
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Len(t, response, 1)
		assert.Equal(t, "Ward Road Upgrade", response[0].Title)
		assert.Equal(t, "ongoing", response[0].Status)
	})

	t.Run("works without a redis client", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT (.+) FROM projects ORDER BY created_at DESC").
			WillReturnRows(projectRows())

		router := projectRouter(db, nil)

		r := httptest.NewRequest("GET", "/projects", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})
}

func TestProjectService_GetProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	router := projectRouter(db, nil)

	t.Run("found", func(t *testing.T) {
		created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery("SELECT (.+) FROM projects WHERE id").
			WithArgs("p1").
			WillReturnRows(projectRows().
				AddRow("p1", "Ward Road Upgrade", nil, 4, "Kathmandu", "KMC",
					5000000.0, 0.0, nil, "pending", nil, "{}", 0.0, nil, created, nil))

		r := httptest.NewRequest("GET", "/projects/p1", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response models.Project
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "p1", response.ID)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM projects WHERE id").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		r := httptest.NewRequest("GET", "/projects/missing", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestProjectService_UpdateProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	router := projectRouter(db, nil)

	t.Run("partial update preserves untouched fields", func(t *testing.T) {
		created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery("SELECT (.+) FROM projects WHERE id").
			WithArgs("p1").
			WillReturnRows(projectRows().
				AddRow("p1", "Ward Road Upgrade", "Blacktopping", 4, "Kathmandu", "KMC",
					5000000.0, 1200000.0, 90, "ongoing", nil, "{}", 0.0, "9800000005", created, nil))
		mock.ExpectExec("UPDATE projects SET title").
			WillReturnResult(sqlmock.NewResult(0, 1))

		body := []byte(`{"budget_utilized":2500000}`)
		r := httptest.NewRequest("PUT", "/projects/p1", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response models.Project
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, 2500000.0, response.BudgetUtilized)
		assert.Equal(t, "Ward Road Upgrade", response.Title)
		assert.Equal(t, "ongoing", response.Status)
		assert.NotNil(t, response.UpdatedAt)
	})

	t.Run("unknown project", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM projects WHERE id").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		r := httptest.NewRequest("PUT", "/projects/missing", bytes.NewBufferString(`{"title":"X"}`))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid status transition value", func(t *testing.T) {
		r := httptest.NewRequest("PUT", "/projects/p1", bytes.NewBufferString(`{"status":"abandoned"}`))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProjectService_DeleteProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	router := projectRouter(db, nil)

	t.Run("deletes", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM projects WHERE id").
			WithArgs("p1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		r := httptest.NewRequest("DELETE", "/projects/p1", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown project", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM projects WHERE id").
			WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		r := httptest.NewRequest("DELETE", "/projects/missing", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestProjectService_ProjectQR(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	router := projectRouter(db, nil)

	t.Run("renders a png", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		r := httptest.NewRequest("GET", "/projects/p1/qr", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, "\x89PNG", w.Body.String()[:4])
	})

	t.Run("unknown project", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		r := httptest.NewRequest("GET", "/projects/missing/qr", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
