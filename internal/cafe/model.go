// Package cafe provides the café catalog model, per-user preference state,
// candidate selection for the swipe feed, and page-based pagination.
package cafe

import (
	"errors"
	"time"

	"github.com/cafeswipe/server/internal/geo"
)

// Common errors for catalog operations.
var (
	ErrNotFound      = errors.New("cafe not found")
	ErrInvalidStatus = errors.New("invalid preference status")
)

// Status is a user's swipe decision for a café.
type Status string

const (
	StatusLike    Status = "LIKE"
	StatusDislike Status = "DISLIKE"
	StatusHold    Status = "HOLD"
)

// Valid reports whether s is one of the known preference statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusLike, StatusDislike, StatusHold:
		return true
	}
	return false
}

// Preference is one user's decision for one café. There is at most one
// row per (user, café) pair; repeated decisions overwrite status and
// refresh UpdatedAt.
type Preference struct {
	UserID    string    `json:"-"`
	CafeID    int64     `json:"-"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Image is a stored café photo. Key is the opaque object-storage
// reference and is never serialized; URL is filled in by media
// enrichment with a time-limited signed URL.
type Image struct {
	ID        int64     `json:"id"`
	CafeID    int64     `json:"-"`
	Order     int       `json:"order"`
	Key       string    `json:"-"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OpenHours is one weekday's opening window for a café.
type OpenHours struct {
	Day   string `json:"day"`
	Open  string `json:"open"`
	Close string `json:"close"`
}

// Cafe is a catalog record. The feed pipeline treats it as read-only;
// writes go through the catalog CRUD operations.
type Cafe struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Location  geo.Point `json:"location"`
	Instagram string    `json:"instagram,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Images are ordered by Order ascending.
	Images    []Image     `json:"images,omitempty"`
	OpenHours []OpenHours `json:"open_hours,omitempty"`

	// PreferenceStatus is the calling user's decision, attached as
	// read-only metadata on non-excluding read paths. Nil when the user
	// has not rated the café or the request is anonymous.
	PreferenceStatus *Status `json:"preference_status,omitempty"`
}

// Clone returns a deep copy so callers can never mutate stored state.
func (c *Cafe) Clone() *Cafe {
	cp := *c
	if c.Images != nil {
		cp.Images = make([]Image, len(c.Images))
		copy(cp.Images, c.Images)
	}
	if c.OpenHours != nil {
		cp.OpenHours = make([]OpenHours, len(c.OpenHours))
		copy(cp.OpenHours, c.OpenHours)
	}
	if c.PreferenceStatus != nil {
		status := *c.PreferenceStatus
		cp.PreferenceStatus = &status
	}
	return &cp
}
