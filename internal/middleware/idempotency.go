package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/cafeswipe/server/internal/idempotency"
)

// IdempotencyKeyHeader carries the client-chosen key for retried writes.
const IdempotencyKeyHeader = "Idempotency-Key"

type idempotencyKeyContextKey struct{}

// SetIdempotencyKey stores the idempotency key in the context.
func SetIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyContextKey{}, key)
}

// GetIdempotencyKey retrieves the idempotency key from context, or "".
func GetIdempotencyKey(ctx context.Context) string {
	if key, ok := ctx.Value(idempotencyKeyContextKey{}).(string); ok {
		return key
	}
	return ""
}

// captureWriter records the status and body so a successful response
// can be replayed for a duplicate key.
type captureWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func (w *captureWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Idempotency dedupes write requests by the Idempotency-Key header.
// The header is optional: requests without it pass straight through.
// A key that was already completed replays the recorded response; a
// fresh key runs the handler and records any 2xx response. Repository
// failures degrade to normal handling rather than blocking the write.
func Idempotency(repo idempotency.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if err := idempotency.ValidateKey(key); err != nil {
				code := "invalid_idempotency_key"
				message := "Invalid Idempotency-Key format"
				if err == idempotency.ErrKeyTooLong {
					code = "idempotency_key_too_long"
					message = "Idempotency-Key exceeds maximum length of 64 characters"
				}
				UpdateResponseContext(w, SetErrorCode(r.Context(), code))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"error":{"code":"`+code+`","message":"`+message+`"}}`)
				return
			}

			ctx := SetIdempotencyKey(r.Context(), key)
			r = r.WithContext(ctx)

			existing, err := repo.Get(key)
			if err == nil {
				slog.InfoContext(ctx, "replaying recorded response for idempotency key",
					"key", key,
					"status", existing.StatusCode,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(existing.StatusCode)
				io.WriteString(w, existing.Body)
				return
			}
			if err != idempotency.ErrKeyNotFound {
				slog.ErrorContext(ctx, "idempotency lookup failed", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			cw := &captureWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(cw, r)

			if cw.statusCode < 200 || cw.statusCode >= 300 {
				return
			}
			body := cw.body.String()
			record := &idempotency.Record{
				Key:        key,
				Method:     r.Method,
				Route:      r.URL.Path,
				Body:       body,
				BodyHash:   idempotency.HashBody(body),
				StatusCode: cw.statusCode,
			}
			if err := repo.Store(record); err != nil {
				// Response already sent; the retry will simply re-run.
				slog.ErrorContext(ctx, "failed to record idempotency key", "key", key, "error", err)
			}
		})
	}
}
