// Package feed orchestrates the swipe-feed pipeline: validate the
// request, select candidates in radius, page them, and enrich image
// keys into signed URLs before the envelope leaves the API.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cafeswipe/server/internal/cafe"
	"github.com/cafeswipe/server/internal/geo"
	"github.com/cafeswipe/server/internal/tracing"
	"github.com/cafeswipe/server/internal/validate"
)

// Config bounds every feed request. It is explicit so tests can
// shrink the cooldown and region without touching globals.
type Config struct {
	// Region is the serviceable bounding box; requests centered outside
	// it are rejected before any storage access.
	Region geo.Region

	MinRadiusMeters float64
	MaxRadiusMeters float64

	// DislikeCooldown is how long a DISLIKE keeps a café out of the
	// swipe feed.
	DislikeCooldown time.Duration

	DefaultTake int
	MaxTake     int
}

// DefaultConfig covers South Korea with the production limits.
func DefaultConfig() Config {
	return Config{
		Region: geo.Region{
			MinLat: 33.0,
			MaxLat: 38.7,
			MinLng: 124.6,
			MaxLng: 131.9,
		},
		MinRadiusMeters: 100,
		MaxRadiusMeters: 5000,
		DislikeCooldown: 7 * 24 * time.Hour,
		DefaultTake:     cafe.DefaultTake,
		MaxTake:         cafe.MaxTake,
	}
}

// Enricher attaches signed URLs to a page of cafés.
type Enricher interface {
	EnrichCafes(ctx context.Context, cafes []*cafe.Cafe) error
	EnrichCafe(ctx context.Context, c *cafe.Cafe) error
}

// Service runs the feed pipeline and the catalog write paths.
type Service struct {
	store    cafe.Store
	enricher Enricher
	cfg      Config
	logger   *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewService creates a feed service.
func NewService(store cafe.Store, enricher Enricher, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		enricher: enricher,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// FeedRequest is one paged radius query. Page and Take of zero mean
// "use the defaults".
type FeedRequest struct {
	Center       geo.Point
	RadiusMeters float64
	Page         int
	Take         int

	// UserID is the calling user's UUID, empty for anonymous requests.
	UserID string
}

// FeedPage is the response envelope. CafeCount counts the items in
// Data after trimming, not the total matches. NextPage is page+1 when
// the over-fetch saw more items, null otherwise; it does not promise
// the next page will be non-empty under concurrent changes.
type FeedPage struct {
	Data        []*cafe.Cafe `json:"data"`
	NextPage    *int         `json:"nextPage"`
	CafeCount   int          `json:"cafeCount"`
	HasNextPage bool         `json:"hasNextPage"`
}

// SwipeFeed returns the page of unrated (or cooldown-expired disliked)
// cafés around the center.
func (s *Service) SwipeFeed(ctx context.Context, req FeedRequest) (*FeedPage, error) {
	return s.radiusPage(ctx, "feed.swipe", req, true)
}

// NearList returns the page of all cafés around the center, with the
// caller's preference status attached as metadata.
func (s *Service) NearList(ctx context.Context, req FeedRequest) (*FeedPage, error) {
	return s.radiusPage(ctx, "feed.near", req, false)
}

func (s *Service) radiusPage(ctx context.Context, span string, req FeedRequest, excludeRated bool) (page *FeedPage, err error) {
	req.Page, req.Take = s.normalizePaging(req.Page, req.Take)
	if err = s.validateFeedRequest(req); err != nil {
		return nil, err
	}

	ctx, endSpan := tracing.StartSpan(ctx, span)
	defer func() { endSpan(err) }()

	candidates, err := s.store.FindNear(ctx, cafe.NearQuery{
		Center:       req.Center,
		RadiusMeters: req.RadiusMeters,
		UserID:       req.UserID,
		ExcludeRated: excludeRated,
		Cooldown:     s.cfg.DislikeCooldown,
		Now:          s.now(),
	})
	if err != nil {
		return nil, &StorageError{Op: "select candidates", Err: err}
	}

	result := cafe.Paginate(candidates, req.Page, req.Take)
	if err = s.enricher.EnrichCafes(ctx, result.Items); err != nil {
		return nil, err
	}

	s.logger.Debug("served radius page",
		"span", span,
		"cell", geo.Encode(req.Center, geo.LogPrecision),
		"radius_m", req.RadiusMeters,
		"page", req.Page,
		"candidates", len(candidates),
		"returned", len(result.Items),
	)
	return s.envelope(result, req.Page), nil
}

// LikedList returns the page of cafés the user has LIKEd.
func (s *Service) LikedList(ctx context.Context, userID string, pageNum, take int) (page *FeedPage, err error) {
	pageNum, take = s.normalizePaging(pageNum, take)
	if err = s.validatePaging(pageNum, take); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, &ValidationError{Field: "user", Message: "authentication required"}
	}

	ctx, endSpan := tracing.StartSpan(ctx, "feed.liked")
	defer func() { endSpan(err) }()

	liked, err := s.store.ListLiked(ctx, userID)
	if err != nil {
		return nil, &StorageError{Op: "list liked", Err: err}
	}

	result := cafe.Paginate(liked, pageNum, take)
	if err = s.enricher.EnrichCafes(ctx, result.Items); err != nil {
		return nil, err
	}
	return s.envelope(result, pageNum), nil
}

// SearchByName returns all cafés whose name contains the keyword,
// enriched, with the caller's preference status attached.
func (s *Service) SearchByName(ctx context.Context, keyword, userID string) (cafes []*cafe.Cafe, err error) {
	keyword, err = validate.SearchKeyword(keyword)
	if err != nil {
		return nil, &ValidationError{Field: "name", Message: err.Error()}
	}

	ctx, endSpan := tracing.StartSpan(ctx, "feed.search")
	defer func() { endSpan(err) }()

	cafes, err = s.store.SearchByName(ctx, keyword, userID)
	if err != nil {
		return nil, &StorageError{Op: "search by name", Err: err}
	}
	if err = s.enricher.EnrichCafes(ctx, cafes); err != nil {
		return nil, err
	}
	return cafes, nil
}

// GetCafe returns one café with signed image URLs and the caller's
// preference metadata.
func (s *Service) GetCafe(ctx context.Context, id int64, userID string) (c *cafe.Cafe, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "cafe.get")
	defer func() { endSpan(err) }()

	c, err = s.store.GetByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, cafe.ErrNotFound) {
			return nil, err
		}
		return nil, &StorageError{Op: "get cafe", Err: err}
	}
	if err = s.enricher.EnrichCafe(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCafe validates and inserts a new café record.
func (s *Service) CreateCafe(ctx context.Context, c *cafe.Cafe) (err error) {
	if err = s.validateCafe(c); err != nil {
		return err
	}

	ctx, endSpan := tracing.StartSpan(ctx, "cafe.create")
	defer func() { endSpan(err) }()

	if err = s.store.Create(ctx, c); err != nil {
		return &StorageError{Op: "create cafe", Err: err}
	}
	s.logger.Info("cafe created", "cafe_id", c.ID, "name", c.Name)
	return nil
}

// UpdateCafe validates and overwrites an existing café record.
func (s *Service) UpdateCafe(ctx context.Context, c *cafe.Cafe) (err error) {
	if c.ID <= 0 {
		return &ValidationError{Field: "id", Message: "cafe id is required"}
	}
	if err = s.validateCafe(c); err != nil {
		return err
	}

	ctx, endSpan := tracing.StartSpan(ctx, "cafe.update")
	defer func() { endSpan(err) }()

	if err = s.store.Update(ctx, c); err != nil {
		if errors.Is(err, cafe.ErrNotFound) {
			return err
		}
		return &StorageError{Op: "update cafe", Err: err}
	}
	s.logger.Info("cafe updated", "cafe_id", c.ID)
	return nil
}

// DeleteCafe removes a café and its dependent rows.
func (s *Service) DeleteCafe(ctx context.Context, id int64) (err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "cafe.delete")
	defer func() { endSpan(err) }()

	if err = s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, cafe.ErrNotFound) {
			return err
		}
		return &StorageError{Op: "delete cafe", Err: err}
	}
	s.logger.Info("cafe deleted", "cafe_id", id)
	return nil
}

// SetPreference records the user's swipe decision for a café. Repeated
// decisions overwrite the row and refresh its timestamp, which restarts
// the dislike cooldown.
func (s *Service) SetPreference(ctx context.Context, userID string, cafeID int64, status cafe.Status) (pref *cafe.Preference, err error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user", Message: "authentication required"}
	}
	if !status.Valid() {
		return nil, &ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("must be one of %s, %s, %s", cafe.StatusLike, cafe.StatusDislike, cafe.StatusHold),
		}
	}

	ctx, endSpan := tracing.StartSpan(ctx, "preference.set")
	defer func() { endSpan(err) }()

	pref, err = s.store.UpsertPreference(ctx, userID, cafeID, status)
	if err != nil {
		if errors.Is(err, cafe.ErrNotFound) {
			return nil, err
		}
		return nil, &StorageError{Op: "upsert preference", Err: err}
	}
	s.logger.Debug("preference recorded", "cafe_id", cafeID, "status", status)
	return pref, nil
}

// GetPreference returns the user's decision for a café, or nil when
// none exists.
func (s *Service) GetPreference(ctx context.Context, userID string, cafeID int64) (pref *cafe.Preference, err error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user", Message: "authentication required"}
	}

	ctx, endSpan := tracing.StartSpan(ctx, "preference.get")
	defer func() { endSpan(err) }()

	pref, err = s.store.GetPreference(ctx, userID, cafeID)
	if err != nil {
		return nil, &StorageError{Op: "get preference", Err: err}
	}
	return pref, nil
}

// normalizePaging applies the defaults for omitted paging inputs.
// Out-of-range values are left for validation to reject.
func (s *Service) normalizePaging(page, take int) (int, int) {
	if page == 0 {
		page = cafe.DefaultPage
	}
	if take == 0 {
		take = s.cfg.DefaultTake
	}
	return page, take
}

func (s *Service) validateFeedRequest(req FeedRequest) error {
	if !s.cfg.Region.Contains(req.Center) {
		return &ValidationError{
			Field:   "location",
			Message: "coordinates are outside the serviceable region",
		}
	}
	if req.RadiusMeters < s.cfg.MinRadiusMeters || req.RadiusMeters > s.cfg.MaxRadiusMeters {
		return &ValidationError{
			Field: "radiusInMeter",
			Message: fmt.Sprintf("must be between %.0f and %.0f meters",
				s.cfg.MinRadiusMeters, s.cfg.MaxRadiusMeters),
		}
	}
	return s.validatePaging(req.Page, req.Take)
}

func (s *Service) validatePaging(page, take int) error {
	if page < 1 {
		return &ValidationError{Field: "page", Message: "must be at least 1"}
	}
	if take < 1 || take > s.cfg.MaxTake {
		return &ValidationError{
			Field:   "take",
			Message: fmt.Sprintf("must be between 1 and %d", s.cfg.MaxTake),
		}
	}
	return nil
}

// validateCafe sanitizes the text fields in place and checks the
// location against the serviceable region.
func (s *Service) validateCafe(c *cafe.Cafe) error {
	name, err := validate.CafeName(c.Name)
	if err != nil {
		return &ValidationError{Field: "name", Message: err.Error()}
	}
	address, err := validate.CafeAddress(c.Address)
	if err != nil {
		return &ValidationError{Field: "address", Message: err.Error()}
	}
	phone, err := validate.PhoneNumber(c.Phone)
	if err != nil {
		return &ValidationError{Field: "phone", Message: err.Error()}
	}
	instagram, err := validate.InstagramHandle(c.Instagram)
	if err != nil {
		return &ValidationError{Field: "instagram", Message: err.Error()}
	}
	if !s.cfg.Region.Contains(c.Location) {
		return &ValidationError{
			Field:   "location",
			Message: "coordinates are outside the serviceable region",
		}
	}
	c.Name = name
	c.Address = address
	c.Phone = phone
	c.Instagram = instagram
	return nil
}

// envelope shapes a page result into the response envelope.
func (s *Service) envelope(result cafe.PageResult, page int) *FeedPage {
	fp := &FeedPage{
		Data:        result.Items,
		CafeCount:   len(result.Items),
		HasNextPage: result.HasNextPage,
	}
	if result.HasNextPage {
		next := page + 1
		fp.NextPage = &next
	}
	return fp
}
