package services

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/civictrack/backend/internal/models"
)

func expenditureRouter(db *sql.DB, user *models.User) http.Handler {
	service := NewExpenditureService(db)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if user != nil {
				req = req.WithContext(WithIdentity(req.Context(), user, user.Admin))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/projects/{projectId}/expenditures", service.CreateExpenditure)
	r.Get("/projects/{projectId}/expenditures", service.ListProjectExpenditures)
	return r
}

func TestExpenditureService_CreateExpenditure(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	contractor := &models.User{ID: "c1", Phone: "9800000005"}
	router := expenditureRouter(db, contractor)

	t.Run("contractor logs an expenditure", func(t *testing.T) {
		mock.ExpectQuery("SELECT contractor FROM projects").
			WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"contractor"}).AddRow("9800000005"))
		mock.ExpectExec("INSERT INTO expenditures").
			WithArgs(sqlmock.AnyArg(), "p1", "Gravel delivery", "", 250000.0,
				"https://bills.example.com/gravel.pdf", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		body := []byte(`{"title":"Gravel delivery","amount":250000,"bill_url":"https://bills.example.com/gravel.pdf"}`)
		r := httptest.NewRequest("POST", "/projects/p1/expenditures", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response models.Expenditure
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "https://bills.example.com/gravel.pdf", response.BillURL)
		assert.Equal(t, 250000.0, response.Amount)
	})

	t.Run("non-contractor is refused", func(t *testing.T) {
		mock.ExpectQuery("SELECT contractor FROM projects").
			WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"contractor"}).AddRow("9899999999"))

		body := []byte(`{"title":"Gravel delivery","amount":250000,"bill_url":"https://bills.example.com/gravel.pdf"}`)
		r := httptest.NewRequest("POST", "/projects/p1/expenditures", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("project with no contractor assigned", func(t *testing.T) {
		mock.ExpectQuery("SELECT contractor FROM projects").
			WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"contractor"}).AddRow(nil))

		body := []byte(`{"title":"Gravel delivery","amount":250000,"bill_url":"https://bills.example.com/gravel.pdf"}`)
		r := httptest.NewRequest("POST", "/projects/p1/expenditures", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing bill URL", func(t *testing.T) {
		body := []byte(`{"title":"Gravel delivery","amount":250000}`)
		r := httptest.NewRequest("POST", "/projects/p1/expenditures", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bill URL must be a URL", func(t *testing.T) {
		body := []byte(`{"title":"Gravel delivery","amount":250000,"bill_url":"not a url"}`)
		r := httptest.NewRequest("POST", "/projects/p1/expenditures", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown project", func(t *testing.T) {
		mock.ExpectQuery("SELECT contractor FROM projects").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		body := []byte(`{"title":"Gravel delivery","amount":250000,"bill_url":"https://bills.example.com/gravel.pdf"}`)
		r := httptest.NewRequest("POST", "/projects/missing/expenditures", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestExpenditureService_ListProjectExpenditures(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	router := expenditureRouter(db, nil)

	mock.ExpectQuery("SELECT id, project_id, title, description, amount, bill_url, created_at FROM expenditures").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "title", "description", "amount", "bill_url", "created_at"}).
			AddRow("e1", "p1", "Gravel delivery", nil, 250000.0, "https://bills.example.com/gravel.pdf", sampleTime()))

	r := httptest.NewRequest("GET", "/projects/p1/expenditures", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	var response []models.Expenditure
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Len(t, response, 1)
	assert.Equal(t, "Gravel delivery", response[0].Title)
}
