package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cafeswipe/server/internal/media"
	"github.com/cafeswipe/server/internal/middleware"
)

// UploadSigner issues pre-signed PUT URLs for new café photos.
type UploadSigner interface {
	SignUpload(ctx context.Context, contentType string, sizeBytes int64) (*media.UploadTicket, error)
}

// SignUploadRequest represents the request body for POST /images/sign-upload.
type SignUploadRequest struct {
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// SignUploadResponse represents the response for POST /images/sign-upload.
type SignUploadResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	ExpiresAt string `json:"expiresAt"` // ISO 8601 format
}

// UploadHandlers holds dependencies for upload HTTP handlers.
type UploadHandlers struct {
	signer UploadSigner
}

// NewUploadHandlers creates a new UploadHandlers instance.
func NewUploadHandlers(signer UploadSigner) *UploadHandlers {
	return &UploadHandlers{signer: signer}
}

// SignUpload handles POST /images/sign-upload - generates a pre-signed
// upload URL for a café photo.
func (h *UploadHandlers) SignUpload(w http.ResponseWriter, r *http.Request) {
	var req SignUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.ContentType == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "contentType is required")
		return
	}
	if req.SizeBytes <= 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "sizeBytes must be positive")
		return
	}

	ticket, err := h.signer.SignUpload(r.Context(), req.ContentType, req.SizeBytes)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrUnsupportedType):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnsupportedType)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeUnsupportedType,
				"Unsupported content type. Allowed types: image/jpeg, image/png, image/webp")
		case errors.Is(err, media.ErrFileTooLarge):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "File size exceeds maximum allowed")
		default:
			slog.ErrorContext(r.Context(), "failed to generate signed upload URL", "error", err)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate signed URL")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, SignUploadResponse{
		URL:       ticket.URL,
		Key:       ticket.Key,
		ExpiresAt: ticket.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
