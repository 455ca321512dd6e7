package idempotency

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid key", "create-cafe-7f3a", nil},
		{"valid uuid key", "550e8400-e29b-41d4-a716-446655440000", nil},
		{"max length", strings.Repeat("a", MaxKeyLength), nil},
		{"empty", "", ErrInvalidKey},
		{"too long", strings.Repeat("a", MaxKeyLength+1), ErrKeyTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateKey(tt.key); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateKey() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHashBody(t *testing.T) {
	a := HashBody(`{"id":1}`)
	b := HashBody(`{"id":1}`)
	c := HashBody(`{"id":2}`)

	if a != b {
		t.Errorf("same body hashed differently: %q vs %q", a, b)
	}
	if a == c {
		t.Error("different bodies produced the same hash")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestMemoryRepositoryStoreAndGet(t *testing.T) {
	repo := NewMemoryRepository()

	record := &Record{
		Key:        "key-1",
		Method:     "POST",
		Route:      "/cafes",
		Body:       `{"id":1}`,
		BodyHash:   HashBody(`{"id":1}`),
		StatusCode: 201,
	}
	if err := repo.Store(record); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, err := repo.Get("key-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.StatusCode != 201 || got.Body != `{"id":1}` {
		t.Errorf("Get() = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set on store")
	}

	// Stored copy is detached from the caller's value.
	record.Body = "mutated"
	got, _ = repo.Get("key-1")
	if got.Body != `{"id":1}` {
		t.Error("stored record shares memory with caller")
	}
}

func TestMemoryRepositoryDuplicateKey(t *testing.T) {
	repo := NewMemoryRepository()
	if err := repo.Store(&Record{Key: "dup"}); err != nil {
		t.Fatalf("first Store() error = %v", err)
	}
	if err := repo.Store(&Record{Key: "dup"}); !errors.Is(err, ErrKeyExists) {
		t.Errorf("second Store() error = %v, want ErrKeyExists", err)
	}
}

func TestMemoryRepositoryGetMissing(t *testing.T) {
	repo := NewMemoryRepository()
	if _, err := repo.Get("nope"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get() error = %v, want ErrKeyNotFound", err)
	}
}

func TestMemoryRepositoryDeleteOlderThan(t *testing.T) {
	repo := NewMemoryRepository()

	old := &Record{Key: "old", CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := &Record{Key: "fresh"}
	if err := repo.Store(old); err != nil {
		t.Fatal(err)
	}
	if err := repo.Store(fresh); err != nil {
		t.Fatal(err)
	}

	deleted, err := repo.DeleteOlderThan(DefaultExpiry)
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := repo.Get("old"); !errors.Is(err, ErrKeyNotFound) {
		t.Error("expired record still present")
	}
	if _, err := repo.Get("fresh"); err != nil {
		t.Errorf("fresh record removed: %v", err)
	}
}

func TestCleanup(t *testing.T) {
	repo := NewMemoryRepository()
	if err := repo.Store(&Record{Key: "stale", CreatedAt: time.Now().Add(-2 * DefaultExpiry)}); err != nil {
		t.Fatal(err)
	}

	deleted, err := Cleanup(repo, DefaultExpiry)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if repo.Len() != 0 {
		t.Errorf("records remaining = %d", repo.Len())
	}
}
