package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/civictrack/backend/internal/models"
)

type AuthService struct {
	db        *sql.DB
	tokens    *TokenService
	validator *validator.Validate
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Name     string `json:"name" example:"Sita Sharma"`                       // Display name (optional)
	Password string `json:"password" validate:"required" example:"ab!!1"`     // Password (min 5 chars, 2 punctuation)
	Phone    string `json:"phone" validate:"required" example:"9800000001"`   // Phone number, used as login identifier
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Phone    string `json:"phone" validate:"required" example:"9800000001"` // Phone number
	Password string `json:"password" validate:"required" example:"ab!!1"`   // Password
}

// TokenResponse represents the login response
// @Description Bearer token response structure
type TokenResponse struct {
	AccessToken string `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	TokenType   string `json:"token_type" example:"bearer"`                                    // Always "bearer"
}

func NewAuthService(db *sql.DB, tokens *TokenService) *AuthService {
	return &AuthService{
		db:        db,
		tokens:    tokens,
		validator: validator.New(),
	}
}

func (s *AuthService) sendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	SendErrorResponse(w, message, statusCode, validationErr)
}

func (s *AuthService) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		s.sendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		s.sendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	return true
}

// Register handles user registration
// @Summary Register a new citizen account
// @Description Register with phone and password; password needs length >= 5 and at least 2 punctuation characters
// @Tags users
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 200 {object} models.UserPublic "Registration successful"
// @Failure 400 {object} ErrorResponse "Invalid request or weak password"
// @Failure 409 {object} ErrorResponse "Phone already registered"
// @Router /user/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	var req RegisterRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		log.Printf("[AUTH] Registration validation failed: %v", err)
		s.sendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if err := ValidatePassword(req.Password); err != nil {
		log.Printf("[AUTH] Weak password rejected for phone: %s", req.Phone)
		s.sendErrorResponse(w, "Invalid Password", http.StatusBadRequest, nil)
		return
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", req.Phone, err)
		s.sendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	user := models.User{
		ID:    uuid.NewString(),
		Name:  req.Name,
		Phone: req.Phone,
	}

	_, err = s.db.Exec("INSERT INTO users (id, name, phone, password, admin) VALUES ($1, $2, $3, $4, FALSE)",
		user.ID, user.Name, user.Phone, hashedPassword)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			log.Printf("[AUTH] Duplicate phone on registration: %s", req.Phone)
			s.sendErrorResponse(w, "Phone Already Exists", http.StatusConflict, nil)
			return
		}
		log.Printf("[AUTH] User creation failed for %s: %v", req.Phone, err)
		s.sendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] User created successfully - ID: %s, Phone: %s", user.ID, user.Phone)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user.Public())
}

// Login handles user authentication
// @Summary Login with phone and password
// @Description Authenticate and receive a bearer token valid for 60 days
// @Tags users
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} TokenResponse "Login successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Incorrect credentials"
// @Router /user/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		log.Printf("[AUTH] Login validation failed: %v", err)
		s.sendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var hashedPassword string
	var admin bool
	err := s.db.QueryRow("SELECT password, admin FROM users WHERE phone = $1", req.Phone).
		Scan(&hashedPassword, &admin)
	if err != nil {
		// Same answer whether the phone or the password was wrong.
		log.Printf("[AUTH] Login failed, unknown phone: %s", req.Phone)
		s.sendErrorResponse(w, "Incorrect credentials", http.StatusUnauthorized, nil)
		return
	}

	if !VerifyPassword(req.Password, hashedPassword) {
		log.Printf("[AUTH] Login failed, wrong password for phone: %s", req.Phone)
		s.sendErrorResponse(w, "Incorrect credentials", http.StatusUnauthorized, nil)
		return
	}

	token, err := s.tokens.Issue(req.Phone, admin)
	if err != nil {
		log.Printf("[AUTH] Token issuance failed for %s: %v", req.Phone, err)
		s.sendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for phone: %s", req.Phone)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Verify returns the authenticated user's public profile
// @Summary Get current user
// @Description Return the public view of the user resolved from the bearer token
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UserPublic "Current user"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /user/verify [get]
func (s *AuthService) Verify(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	if !ok {
		s.sendErrorResponse(w, "Could not validate credentials", http.StatusUnauthorized, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user.Public())
}

// SetAdmin promotes another user to admin
// @Summary Promote a user to admin
// @Description Set the admin flag on the user identified by the phone query parameter
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param phone query string true "Phone of the user to promote"
// @Success 200 {object} models.UserPublic "Promoted user"
// @Failure 403 {object} ErrorResponse "Caller is not an admin"
// @Failure 404 {object} ErrorResponse "User not found"
// @Router /user/admin [put]
func (s *AuthService) SetAdmin(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		s.sendErrorResponse(w, "Missing phone parameter", http.StatusBadRequest, nil)
		return
	}

	var user models.User
	var name, citizenshipNum, district, city sql.NullString
	var wardNum sql.NullInt64
	err := s.db.QueryRow(
		"UPDATE users SET admin = TRUE WHERE phone = $1 RETURNING id, name, phone, citizenship_num, district, city, ward_num",
		phone,
	).Scan(&user.ID, &name, &user.Phone, &citizenshipNum, &district, &city, &wardNum)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.sendErrorResponse(w, "User not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[AUTH] Admin promotion failed for %s: %v", phone, err)
		s.sendErrorResponse(w, "Failed to update user", http.StatusInternalServerError, nil)
		return
	}
	user.Name = name.String
	user.CitizenshipNum = citizenshipNum.String
	user.District = district.String
	user.City = city.String
	user.WardNum = int(wardNum.Int64)

	log.Printf("[AUTH] User promoted to admin: %s", phone)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user.Public())
}

// ListUsers returns every registered user
// @Summary List all users
// @Description Admin-only listing of all registered users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.UserPublic "All users"
// @Failure 403 {object} ErrorResponse "Caller is not an admin"
// @Router /user/all [get]
func (s *AuthService) ListUsers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query("SELECT id, name, phone, citizenship_num, district, city, ward_num FROM users ORDER BY phone")
	if err != nil {
		log.Printf("[AUTH] User listing failed: %v", err)
		s.sendErrorResponse(w, "Failed to fetch users", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	users := []models.UserPublic{}
	for rows.Next() {
		var user models.User
		var name, citizenshipNum, district, city sql.NullString
		var wardNum sql.NullInt64
		if err := rows.Scan(&user.ID, &name, &user.Phone, &citizenshipNum, &district, &city, &wardNum); err != nil {
			log.Printf("[AUTH] User row scan failed: %v", err)
			s.sendErrorResponse(w, "Failed to fetch users", http.StatusInternalServerError, nil)
			return
		}
		user.Name = name.String
		user.CitizenshipNum = citizenshipNum.String
		user.District = district.String
		user.City = city.String
		user.WardNum = int(wardNum.Int64)
		users = append(users, user.Public())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}
