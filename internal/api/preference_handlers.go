package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cafeswipe/server/internal/cafe"
	"github.com/cafeswipe/server/internal/feed"
	"github.com/cafeswipe/server/internal/middleware"
)

// SetPreferenceRequest represents the request body for recording a
// swipe decision.
type SetPreferenceRequest struct {
	Status cafe.Status `json:"status"`
}

// PreferenceResponse is the stored decision for one café. Status is
// null when the caller has not rated the café.
type PreferenceResponse struct {
	CafeID    int64        `json:"cafeId"`
	Status    *cafe.Status `json:"status"`
	UpdatedAt *time.Time   `json:"updatedAt,omitempty"`
}

// PreferenceHandlers holds dependencies for the preference endpoints.
type PreferenceHandlers struct {
	svc *feed.Service
}

// NewPreferenceHandlers creates a new PreferenceHandlers instance.
func NewPreferenceHandlers(svc *feed.Service) *PreferenceHandlers {
	return &PreferenceHandlers{svc: svc}
}

// SetPreference handles POST /cafes/{id}/preference - records the
// caller's swipe decision. Repeating a decision refreshes its
// timestamp, which restarts the dislike cooldown.
func (h *PreferenceHandlers) SetPreference(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req SetPreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	pref, err := h.svc.SetPreference(r.Context(), middleware.GetUserID(r.Context()), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, PreferenceResponse{
		CafeID:    id,
		Status:    &pref.Status,
		UpdatedAt: &pref.UpdatedAt,
	})
}

// GetPreference handles GET /cafes/{id}/preference - returns the
// caller's stored decision, with a null status when none exists.
func (h *PreferenceHandlers) GetPreference(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	pref, err := h.svc.GetPreference(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := PreferenceResponse{CafeID: id}
	if pref != nil {
		resp.Status = &pref.Status
		resp.UpdatedAt = &pref.UpdatedAt
	}
	writeJSON(w, r, http.StatusOK, resp)
}
