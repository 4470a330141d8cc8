package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/civictrack/backend/internal/models"
	"github.com/civictrack/backend/internal/services"
)

type VerificationHandler struct {
	service   *services.VerificationService
	validator *services.ValidationHelper
}

func NewVerificationHandler(service *services.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// Upload accepts a citizenship document for the caller's own phone
// @Summary Upload citizenship document
// @Description Upload a JPG or PNG identity document (max 1 MiB) for verification
// @Tags verify
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param phone path string true "Phone of the uploading user (must be the caller)"
// @Param file formData file true "Identity document"
// @Success 200 {object} object{filename=string,saved_to=string}
// @Failure 400 {object} services.ErrorResponse "Missing file or invalid filename"
// @Failure 401 {object} services.ErrorResponse "Phone does not match the caller"
// @Failure 413 {object} services.ErrorResponse "Document larger than 1 MiB"
// @Failure 415 {object} services.ErrorResponse "Not a JPG or PNG"
// @Router /verification/citizenship/{phone} [post]
func (h *VerificationHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := services.CurrentUser(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Could not validate credentials", http.StatusUnauthorized, nil)
		return
	}

	phone := chi.URLParam(r, "phone")
	if phone != user.Phone {
		services.SendErrorResponse(w, "Invalid User", http.StatusUnauthorized, nil)
		return
	}

	// Generous outer bound; the exact 1 MiB document limit is enforced below
	// so oversized uploads get a clean 413 instead of a parse error.
	r.Body = http.MaxBytesReader(w, r.Body, 8<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		services.SendErrorResponse(w, "Missing file upload", http.StatusBadRequest, nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, services.MaxDocumentSize+1))
	if err != nil {
		services.SendErrorResponse(w, "Failed to read upload", http.StatusBadRequest, nil)
		return
	}

	savedPath, err := h.service.Submit(phone, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnsupportedMedia):
			services.SendErrorResponse(w, err.Error(), http.StatusUnsupportedMediaType, nil)
		case errors.Is(err, services.ErrPayloadTooLarge):
			services.SendErrorResponse(w, err.Error(), http.StatusRequestEntityTooLarge, nil)
		case errors.Is(err, services.ErrInvalidFilename):
			services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		default:
			services.SendErrorResponse(w, "Failed to store document", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"filename": header.Filename,
		"saved_to": savedPath,
	})
}

// Review returns the next pending verification request
// @Summary Review pending verification
// @Description Return any one pending citizenship record with base64 document bytes
// @Tags verify
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.PendingDocument
// @Failure 403 {object} services.ErrorResponse "Caller is not an admin"
// @Failure 404 {object} services.ErrorResponse "No pending records"
// @Router /verification/citizenship [get]
func (h *VerificationHandler) Review(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.NextPending()
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			services.SendErrorResponse(w, "No user found.", http.StatusNotFound, nil)
			return
		}
		services.SendErrorResponse(w, "Failed to fetch pending record", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// Approve marks a citizenship record verified and updates the user
// @Summary Approve verification
// @Description Apply citizenship fields to the user and flip the record to verified
// @Tags verify
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param phone path string true "Phone of the user being verified"
// @Param request body models.CitizenshipPatch true "Citizenship fields to apply"
// @Success 200 {object} models.UserPublic "Updated user"
// @Failure 403 {object} services.ErrorResponse "Caller is not an admin"
// @Failure 404 {object} services.ErrorResponse "User or record not found"
// @Router /verification/citizenship/{phone} [put]
func (h *VerificationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var patch models.CitizenshipPatch
	if err := dec.Decode(&patch); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&patch); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	user, err := h.service.Approve(phone, patch)
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			services.SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
			return
		}
		services.SendErrorResponse(w, "Failed to verify user", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user.Public())
}

// Reject marks a pending citizenship record rejected
// @Summary Reject verification
// @Description Flip a pending citizenship record to rejected; the document is retained
// @Tags verify
// @Produce json
// @Security BearerAuth
// @Param phone path string true "Phone of the user being rejected"
// @Success 200 {object} object{phone=string,status=string}
// @Failure 403 {object} services.ErrorResponse "Caller is not an admin"
// @Failure 404 {object} services.ErrorResponse "No pending record"
// @Router /verification/citizenship/{phone}/reject [put]
func (h *VerificationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")

	if err := h.service.Reject(phone); err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			services.SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
			return
		}
		services.SendErrorResponse(w, "Failed to reject record", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"phone": phone, "status": "rejected"})
}
