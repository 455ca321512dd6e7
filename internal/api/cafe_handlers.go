package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cafeswipe/server/internal/cafe"
	"github.com/cafeswipe/server/internal/feed"
	"github.com/cafeswipe/server/internal/geo"
	"github.com/cafeswipe/server/internal/middleware"
)

// CafeImageRequest registers a previously uploaded object on a café.
type CafeImageRequest struct {
	Key   string `json:"key"`
	Order int    `json:"order"`
}

// CafeRequest represents the request body for creating or updating a café.
type CafeRequest struct {
	Name      string             `json:"name"`
	Address   string             `json:"address"`
	Latitude  float64            `json:"latitude"`
	Longitude float64            `json:"longitude"`
	Instagram string             `json:"instagram,omitempty"`
	Phone     string             `json:"phone,omitempty"`
	Images    []CafeImageRequest `json:"images,omitempty"`
	OpenHours []cafe.OpenHours   `json:"open_hours,omitempty"`
}

// toModel converts the request body to a catalog record.
func (req *CafeRequest) toModel() *cafe.Cafe {
	c := &cafe.Cafe{
		Name:      req.Name,
		Address:   req.Address,
		Location:  geo.Point{Lat: req.Latitude, Lng: req.Longitude},
		Instagram: req.Instagram,
		Phone:     req.Phone,
		OpenHours: req.OpenHours,
	}
	for _, img := range req.Images {
		c.Images = append(c.Images, cafe.Image{Key: img.Key, Order: img.Order})
	}
	return c
}

// CafeHandlers holds dependencies for the catalog CRUD endpoints.
type CafeHandlers struct {
	svc *feed.Service
}

// NewCafeHandlers creates a new CafeHandlers instance.
func NewCafeHandlers(svc *feed.Service) *CafeHandlers {
	return &CafeHandlers{svc: svc}
}

// pathID parses the {id} path segment. Returns false after writing an
// error response when it is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Cafe ID must be a positive integer")
		return 0, false
	}
	return id, true
}

// CreateCafe handles POST /cafes - creates a new café record.
func (h *CafeHandlers) CreateCafe(w http.ResponseWriter, r *http.Request) {
	var req CafeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	c := req.toModel()
	if err := h.svc.CreateCafe(r.Context(), c); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, c)
}

// GetCafe handles GET /cafes/{id} - returns one café with signed image
// URLs and the caller's preference metadata.
func (h *CafeHandlers) GetCafe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	c, err := h.svc.GetCafe(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, c)
}

// UpdateCafe handles PATCH /cafes/{id} - overwrites a café record.
func (h *CafeHandlers) UpdateCafe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req CafeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	c := req.toModel()
	c.ID = id
	if err := h.svc.UpdateCafe(r.Context(), c); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, c)
}

// DeleteCafe handles DELETE /cafes/{id} - removes a café and its
// dependent images, hours, and preferences.
func (h *CafeHandlers) DeleteCafe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteCafe(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
