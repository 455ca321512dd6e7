package cafe

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cafeswipe/server/internal/geo"
)

// prefKey identifies one (user, café) preference row.
type prefKey struct {
	userID string
	cafeID int64
}

// MemoryStore is an in-memory implementation of Store.
// Thread-safe via RWMutex. Used for tests and development mode.
type MemoryStore struct {
	mu     sync.RWMutex
	cafes  map[int64]*Cafe
	prefs  map[prefKey]*Preference
	nextID int64

	// timeNow is swappable for tests.
	timeNow func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cafes:   make(map[int64]*Cafe),
		prefs:   make(map[prefKey]*Preference),
		timeNow: time.Now,
	}
}

// SetTimeNow overrides the store's clock. Tests only.
func (s *MemoryStore) SetTimeNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeNow = now
}

// FindNear returns all cafés within the query radius, ordered by ID
// ascending.
func (s *MemoryStore) FindNear(ctx context.Context, q NearQuery) ([]*Cafe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := q.At()
	var candidates []*Cafe
	for _, c := range s.cafes {
		if !geo.WithinRadius(q.Center, c.Location, q.RadiusMeters) {
			continue
		}

		var pref *Preference
		if q.UserID != "" {
			pref = s.prefs[prefKey{q.UserID, c.ID}]
		}

		if q.ExcludeRated {
			if !EligibleForSwipe(pref, now, q.Cooldown) {
				continue
			}
			candidates = append(candidates, c.Clone())
			continue
		}

		cp := c.Clone()
		if pref != nil {
			status := pref.Status
			cp.PreferenceStatus = &status
		}
		candidates = append(candidates, cp)
	}

	sortByID(candidates)
	return candidates, nil
}

// GetByID returns one café with the caller's preference metadata.
func (s *MemoryStore) GetByID(ctx context.Context, id int64, userID string) (*Cafe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cafes[id]
	if !ok {
		return nil, ErrNotFound
	}

	cp := c.Clone()
	if userID != "" {
		if pref := s.prefs[prefKey{userID, id}]; pref != nil {
			status := pref.Status
			cp.PreferenceStatus = &status
		}
	}
	return cp, nil
}

// ListLiked returns all cafés the user has LIKEd, ordered by ID ascending.
func (s *MemoryStore) ListLiked(ctx context.Context, userID string) ([]*Cafe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var liked []*Cafe
	for key, pref := range s.prefs {
		if key.userID != userID || pref.Status != StatusLike {
			continue
		}
		c, ok := s.cafes[key.cafeID]
		if !ok {
			continue
		}
		cp := c.Clone()
		status := StatusLike
		cp.PreferenceStatus = &status
		liked = append(liked, cp)
	}

	sortByID(liked)
	return liked, nil
}

// SearchByName returns all cafés whose name contains the keyword,
// case-insensitive, ordered by ID ascending.
func (s *MemoryStore) SearchByName(ctx context.Context, keyword, userID string) ([]*Cafe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return []*Cafe{}, nil
	}

	var matches []*Cafe
	for _, c := range s.cafes {
		if !strings.Contains(strings.ToLower(c.Name), needle) {
			continue
		}
		cp := c.Clone()
		if userID != "" {
			if pref := s.prefs[prefKey{userID, c.ID}]; pref != nil {
				status := pref.Status
				cp.PreferenceStatus = &status
			}
		}
		matches = append(matches, cp)
	}

	sortByID(matches)
	return matches, nil
}

// Create inserts a new café and assigns its ID.
func (s *MemoryStore) Create(ctx context.Context, c *Cafe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	c.ID = s.nextID
	c.CreatedAt = s.timeNow()
	for i := range c.Images {
		c.Images[i].CafeID = c.ID
		if c.Images[i].CreatedAt.IsZero() {
			c.Images[i].CreatedAt = c.CreatedAt
		}
	}
	sortImages(c.Images)

	s.cafes[c.ID] = c.Clone()
	return nil
}

// Update overwrites a café's mutable fields.
func (s *MemoryStore) Update(ctx context.Context, c *Cafe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.cafes[c.ID]
	if !ok {
		return ErrNotFound
	}

	cp := c.Clone()
	cp.CreatedAt = existing.CreatedAt
	sortImages(cp.Images)
	s.cafes[c.ID] = cp
	return nil
}

// Delete removes a café and its preference rows.
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cafes[id]; !ok {
		return ErrNotFound
	}
	delete(s.cafes, id)
	for key := range s.prefs {
		if key.cafeID == id {
			delete(s.prefs, key)
		}
	}
	return nil
}

// UpsertPreference creates or overwrites the (user, café) decision.
func (s *MemoryStore) UpsertPreference(ctx context.Context, userID string, cafeID int64, status Status) (*Preference, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cafes[cafeID]; !ok {
		return nil, ErrNotFound
	}

	pref := &Preference{
		UserID:    userID,
		CafeID:    cafeID,
		Status:    status,
		UpdatedAt: s.timeNow(),
	}
	s.prefs[prefKey{userID, cafeID}] = pref

	prefCopy := *pref
	return &prefCopy, nil
}

// GetPreference returns the user's decision for a café, or nil.
func (s *MemoryStore) GetPreference(ctx context.Context, userID string, cafeID int64) (*Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pref, ok := s.prefs[prefKey{userID, cafeID}]
	if !ok {
		return nil, nil
	}
	prefCopy := *pref
	return &prefCopy, nil
}

// SetPreferenceUpdatedAt backdates a preference row. Tests only; the
// cooldown rules are exercised by shifting UpdatedAt into the past.
func (s *MemoryStore) SetPreferenceUpdatedAt(userID string, cafeID int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pref, ok := s.prefs[prefKey{userID, cafeID}]; ok {
		pref.UpdatedAt = at
	}
}

// sortByID orders cafés by ID ascending for deterministic pagination.
func sortByID(cafes []*Cafe) {
	sort.Slice(cafes, func(i, j int) bool {
		return cafes[i].ID < cafes[j].ID
	})
}

// sortImages orders images by display sequence.
func sortImages(images []Image) {
	sort.Slice(images, func(i, j int) bool {
		return images[i].Order < images[j].Order
	})
}
