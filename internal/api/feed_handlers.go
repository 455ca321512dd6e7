package api

import (
	"net/http"
	"strconv"

	"github.com/cafeswipe/server/internal/feed"
	"github.com/cafeswipe/server/internal/geo"
	"github.com/cafeswipe/server/internal/middleware"
)

// FeedHandlers holds dependencies for the radius feed endpoints.
type FeedHandlers struct {
	svc *feed.Service
}

// NewFeedHandlers creates a new FeedHandlers instance.
func NewFeedHandlers(svc *feed.Service) *FeedHandlers {
	return &FeedHandlers{svc: svc}
}

// parseFeedQuery extracts a FeedRequest from query parameters. The
// caller's user ID comes from the request context, not the query.
// Returns false after writing an error response when a parameter is
// not a number; range checks are left to the service.
func parseFeedQuery(w http.ResponseWriter, r *http.Request) (feed.FeedRequest, bool) {
	var req feed.FeedRequest

	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("latitude"), 64)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "latitude must be a number")
		return req, false
	}
	lng, err := strconv.ParseFloat(q.Get("longitude"), 64)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "longitude must be a number")
		return req, false
	}
	radius, err := strconv.ParseFloat(q.Get("radiusInMeter"), 64)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "radiusInMeter must be a number")
		return req, false
	}

	page, ok := parseOptionalInt(w, r, q.Get("page"), "page")
	if !ok {
		return req, false
	}
	take, ok := parseOptionalInt(w, r, q.Get("take"), "take")
	if !ok {
		return req, false
	}

	req.Center = geo.Point{Lat: lat, Lng: lng}
	req.RadiusMeters = radius
	req.Page = page
	req.Take = take
	req.UserID = middleware.GetUserID(r.Context())
	return req, true
}

// parseOptionalInt parses an optional positive integer query parameter.
// An empty value maps to zero, which the service replaces with its default.
func parseOptionalInt(w http.ResponseWriter, r *http.Request, raw, field string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, field+" must be an integer")
		return 0, false
	}
	return v, true
}

// SwipeFeed handles GET /cafes/swipe - the paged feed of unrated cafés
// around the caller.
func (h *FeedHandlers) SwipeFeed(w http.ResponseWriter, r *http.Request) {
	req, ok := parseFeedQuery(w, r)
	if !ok {
		return
	}

	page, err := h.svc.SwipeFeed(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

// NearList handles GET /cafes/near - all cafés around the caller with
// preference status attached as metadata.
func (h *FeedHandlers) NearList(w http.ResponseWriter, r *http.Request) {
	req, ok := parseFeedQuery(w, r)
	if !ok {
		return
	}

	page, err := h.svc.NearList(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

// LikedList handles GET /cafes/liked - the paged list of cafés the
// caller has liked. Requires authentication.
func (h *FeedHandlers) LikedList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, ok := parseOptionalInt(w, r, q.Get("page"), "page")
	if !ok {
		return
	}
	take, ok := parseOptionalInt(w, r, q.Get("take"), "take")
	if !ok {
		return
	}

	result, err := h.svc.LikedList(r.Context(), middleware.GetUserID(r.Context()), page, take)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// Search handles GET /cafes/search - name substring search.
func (h *FeedHandlers) Search(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("name")

	cafes, err := h.svc.SearchByName(r.Context(), keyword, middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"data": cafes})
}
