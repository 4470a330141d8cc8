package services

import (
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/civictrack/backend/internal/models"
)

// MaxDocumentSize bounds uploaded citizenship documents.
const MaxDocumentSize = 1 * 1024 * 1024 // 1 MiB

var allowedDocumentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// Typed verification failures; the handler maps each to its HTTP status.
var (
	ErrUnsupportedMedia = errors.New("only JPG and PNG files are allowed")
	ErrPayloadTooLarge  = fmt.Errorf("payload too large (max %d bytes)", MaxDocumentSize)
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrRecordNotFound   = errors.New("record not found")
)

// PendingDocument is a verification request queued for admin review, with
// the raw document bytes base64-encoded for inspection.
type PendingDocument struct {
	ID        int    `json:"id"`
	Phone     string `json:"phone"`
	ImageData string `json:"image_data"`
}

// VerificationService runs the citizenship verification workflow: citizens
// upload an identity document, admins review the pending queue and either
// approve (copying citizenship attributes onto the user record) or reject.
type VerificationService struct {
	db        *sql.DB
	uploadDir string
}

func NewVerificationService(db *sql.DB) *VerificationService {
	viper.SetDefault("uploads.citizenship_dir", "citizenship_docs")
	return &VerificationService{
		db:        db,
		uploadDir: viper.GetString("uploads.citizenship_dir"),
	}
}

// Submit stores an uploaded document and upserts the citizenship record to
// pending. A re-submission replaces the previous document and resets a
// verified or rejected record back to pending.
func (s *VerificationService) Submit(phone, filename, contentType string, data []byte) (string, error) {
	if filename == "" {
		return "", ErrInvalidFilename
	}
	ext, ok := allowedDocumentTypes[contentType]
	if !ok {
		return "", ErrUnsupportedMedia
	}
	if len(data) > MaxDocumentSize {
		return "", ErrPayloadTooLarge
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(s.uploadDir, phone+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}

	_, err := s.db.Exec(
		`INSERT INTO citizenships (phone, path, status) VALUES ($1, $2, 'pending')
		 ON CONFLICT (phone) DO UPDATE SET path = EXCLUDED.path, status = 'pending'`,
		phone, path)
	if err != nil {
		return "", err
	}

	log.Printf("[VERIFY] Document submitted for phone %s: %s", phone, path)
	return path, nil
}

// NextPending returns any one pending record together with its document
// bytes, or ErrRecordNotFound when the queue is empty. No ordering is
// guaranteed across multiple pending records.
func (s *VerificationService) NextPending() (*PendingDocument, error) {
	var rec models.CitizenshipRecord
	err := s.db.QueryRow(
		"SELECT id, phone, path FROM citizenships WHERE status = 'pending' LIMIT 1",
	).Scan(&rec.ID, &rec.Phone, &rec.Path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(rec.Path)
	if err != nil {
		return nil, err
	}

	return &PendingDocument{
		ID:        rec.ID,
		Phone:     rec.Phone,
		ImageData: base64.StdEncoding.EncodeToString(data),
	}, nil
}

// Approve applies the supplied citizenship fields onto the user record and
// flips the citizenship record to verified, in one transaction. Approving an
// already-verified record re-applies the fields harmlessly. Returns
// ErrRecordNotFound when either the user or the record is missing.
func (s *VerificationService) Approve(phone string, patch models.CitizenshipPatch) (models.User, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return models.User{}, err
	}
	defer tx.Rollback()

	var user models.User
	var name, citizenshipNum, district, city sql.NullString
	var wardNum sql.NullInt64
	err = tx.QueryRow(
		"SELECT id, name, phone, citizenship_num, district, city, ward_num, admin FROM users WHERE phone = $1",
		phone,
	).Scan(&user.ID, &name, &user.Phone, &citizenshipNum, &district, &city, &wardNum, &user.Admin)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrRecordNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	user.Name = name.String
	user.CitizenshipNum = citizenshipNum.String
	user.District = district.String
	user.City = city.String
	user.WardNum = int(wardNum.Int64)

	user = patch.ApplyTo(user)

	_, err = tx.Exec(
		"UPDATE users SET citizenship_num = NULLIF($1, ''), district = $2, city = $3, ward_num = $4 WHERE phone = $5",
		user.CitizenshipNum, user.District, user.City, user.WardNum, phone)
	if err != nil {
		return models.User{}, err
	}

	res, err := tx.Exec("UPDATE citizenships SET status = 'verified' WHERE phone = $1", phone)
	if err != nil {
		return models.User{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.User{}, ErrRecordNotFound
	}

	if err := tx.Commit(); err != nil {
		return models.User{}, err
	}

	log.Printf("[VERIFY] Citizenship verified for phone %s", phone)
	return user, nil
}

// Reject flips a pending record to rejected. The stored document is
// retained. Returns ErrRecordNotFound when no pending record exists.
func (s *VerificationService) Reject(phone string) error {
	res, err := s.db.Exec(
		"UPDATE citizenships SET status = 'rejected' WHERE phone = $1 AND status = 'pending'", phone)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}

	log.Printf("[VERIFY] Citizenship rejected for phone %s", phone)
	return nil
}
