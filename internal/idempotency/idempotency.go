// Package idempotency stores keyed response records so retried café
// writes return the original response instead of creating duplicates.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrKeyNotFound is returned when no record exists for a key.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned when storing a key that is already recorded.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInvalidKey is returned when the key is empty.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// MaxKeyLength bounds client-supplied keys.
const MaxKeyLength = 64

// Record is a completed request captured under an idempotency key.
type Record struct {
	Key        string
	Method     string
	Route      string
	CreatedAt  time.Time
	Body       string
	BodyHash   string
	StatusCode int
}

// ValidateKey rejects empty keys and keys longer than MaxKeyLength.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// HashBody returns the hex SHA-256 of a response body. Stored alongside
// the body so replays can be integrity-checked.
func HashBody(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// Repository persists idempotency records.
type Repository interface {
	// Get returns the record for a key, or ErrKeyNotFound.
	Get(key string) (*Record, error)

	// Store saves a new record, or returns ErrKeyExists.
	Store(record *Record) error

	// DeleteOlderThan removes records older than the given age and
	// returns how many were removed.
	DeleteOlderThan(age time.Duration) (int64, error)
}
