package cafe

import (
	"context"
	"time"

	"github.com/cafeswipe/server/internal/geo"
)

// NearQuery describes one radius search against the catalog.
type NearQuery struct {
	Center       geo.Point
	RadiusMeters float64

	// UserID is the calling user's UUID, empty for anonymous requests.
	UserID string

	// ExcludeRated selects swipe-feed mode: cafés the user has already
	// rated are filtered out, subject to the dislike cooldown. When
	// false, all cafés in radius are returned and the user's preference
	// status (if any) is attached as metadata.
	ExcludeRated bool

	// Cooldown is how long a DISLIKE suppresses a café from the swipe
	// feed before it becomes eligible again.
	Cooldown time.Duration

	// Now anchors cooldown expiry; the zero value means time.Now().
	Now time.Time
}

// At returns the query's reference time.
func (q NearQuery) At() time.Time {
	if q.Now.IsZero() {
		return time.Now()
	}
	return q.Now
}

// Store is the catalog and preference boundary the feed pipeline reads
// from and the preference flow writes to.
type Store interface {
	// FindNear returns all cafés within the query radius, ordered by ID
	// ascending for deterministic pagination. An empty slice is a valid
	// result, not an error.
	FindNear(ctx context.Context, q NearQuery) ([]*Cafe, error)

	// GetByID returns one café with the caller's preference metadata
	// attached. Returns ErrNotFound if the café does not exist.
	GetByID(ctx context.Context, id int64, userID string) (*Cafe, error)

	// ListLiked returns all cafés the user has LIKEd, ordered by ID
	// ascending.
	ListLiked(ctx context.Context, userID string) ([]*Cafe, error)

	// SearchByName returns all cafés whose name contains the keyword
	// (case-insensitive), ordered by ID ascending, with the caller's
	// preference metadata attached.
	SearchByName(ctx context.Context, keyword, userID string) ([]*Cafe, error)

	// Create inserts a new café and assigns its ID.
	Create(ctx context.Context, c *Cafe) error

	// Update overwrites a café's mutable fields. Returns ErrNotFound if
	// the café does not exist.
	Update(ctx context.Context, c *Cafe) error

	// Delete removes a café and its images. Returns ErrNotFound if the
	// café does not exist.
	Delete(ctx context.Context, id int64) error

	// UpsertPreference creates or overwrites the (user, café) decision,
	// refreshing UpdatedAt. Last write wins.
	UpsertPreference(ctx context.Context, userID string, cafeID int64, status Status) (*Preference, error)

	// GetPreference returns the user's decision for a café, or nil when
	// no decision exists.
	GetPreference(ctx context.Context, userID string, cafeID int64) (*Preference, error)
}

// EligibleForSwipe reports whether a preference row leaves its café
// eligible for the swipe feed at the given time. No row means eligible;
// LIKE and HOLD exclude until changed; DISLIKE excludes until the
// cooldown has fully elapsed.
func EligibleForSwipe(p *Preference, now time.Time, cooldown time.Duration) bool {
	if p == nil {
		return true
	}
	if p.Status != StatusDislike {
		return false
	}
	return now.Sub(p.UpdatedAt) >= cooldown
}
