package idempotency

import (
	"context"
	"log/slog"
	"time"
)

// DefaultExpiry is how long a record stays replayable. Client retries
// happen within seconds; a day covers delayed mobile retries.
const DefaultExpiry = 24 * time.Hour

// Cleanup removes records older than expiry and logs the count.
func Cleanup(repo Repository, expiry time.Duration) (int64, error) {
	deleted, err := repo.DeleteOlderThan(expiry)
	if err != nil {
		slog.Error("idempotency cleanup failed", "error", err)
		return 0, err
	}
	if deleted > 0 {
		slog.Info("idempotency records expired", "deleted", deleted, "older_than", expiry)
	}
	return deleted, nil
}

// StartCleanupLoop runs Cleanup at the given interval until ctx is
// cancelled. Blocks; run it in a goroutine.
func StartCleanupLoop(ctx context.Context, repo Repository, interval, expiry time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = Cleanup(repo, expiry)
		case <-ctx.Done():
			return
		}
	}
}
