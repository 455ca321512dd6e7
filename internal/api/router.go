package api

import (
	"net/http"

	"github.com/cafeswipe/server/internal/auth"
	"github.com/cafeswipe/server/internal/idempotency"
	"github.com/cafeswipe/server/internal/middleware"
)

// RouterConfig bundles the handlers and cross-cutting pieces the
// router wires together.
type RouterConfig struct {
	Feed        *FeedHandlers
	Cafes       *CafeHandlers
	Preferences *PreferenceHandlers
	Health      *HealthHandlers

	// Uploads is optional; when nil the sign-upload route is not
	// registered (no object store configured).
	Uploads *UploadHandlers

	Tokens *auth.Service

	// RateLimitStore and Metrics back the per-user feed limiter.
	// Either may be nil to disable that concern.
	RateLimitStore middleware.RateLimitStore
	Metrics        *middleware.Metrics

	// IdempotencyStore dedupes retried café creates; nil disables
	// Idempotency-Key handling.
	IdempotencyStore idempotency.Repository
}

// NewRouter builds the route table. The near list and search accept
// anonymous callers; the swipe feed and everything that touches
// per-user preference state require a valid access token.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	optionalAuth := middleware.Authenticate(cfg.Tokens, false)
	requiredAuth := middleware.Authenticate(cfg.Tokens, true)

	// The radius scan is the most expensive query, so the feed routes
	// carry their own tighter limit keyed per user.
	feedLimit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimitStore != nil {
		feedLimit = middleware.RateLimiter(
			cfg.RateLimitStore,
			middleware.DefaultFeedLimit(),
			middleware.UserKeyFunc(),
			cfg.Metrics,
		)
	}

	handle := func(pattern string, wrap func(http.Handler) http.Handler, h http.HandlerFunc) {
		mux.Handle(pattern, wrap(h))
	}

	handle("GET /cafes/near", chain(optionalAuth, feedLimit), cfg.Feed.NearList)
	// The swipe feed excludes cafés the caller already rated, so it is
	// meaningless without an identified user.
	handle("GET /cafes/swipe", chain(requiredAuth, feedLimit), cfg.Feed.SwipeFeed)
	handle("GET /cafes/liked", requiredAuth, cfg.Feed.LikedList)
	handle("GET /cafes/search", optionalAuth, cfg.Feed.Search)

	// Café creation is the one non-idempotent write, so it honors
	// client Idempotency-Key headers.
	idem := func(next http.Handler) http.Handler { return next }
	if cfg.IdempotencyStore != nil {
		idem = middleware.Idempotency(cfg.IdempotencyStore)
	}
	handle("POST /cafes", chain(requiredAuth, idem), cfg.Cafes.CreateCafe)
	handle("GET /cafes/{id}", optionalAuth, cfg.Cafes.GetCafe)
	handle("PATCH /cafes/{id}", requiredAuth, cfg.Cafes.UpdateCafe)
	handle("DELETE /cafes/{id}", requiredAuth, cfg.Cafes.DeleteCafe)

	handle("POST /cafes/{id}/preference", requiredAuth, cfg.Preferences.SetPreference)
	handle("GET /cafes/{id}/preference", requiredAuth, cfg.Preferences.GetPreference)

	if cfg.Uploads != nil {
		handle("POST /images/sign-upload", requiredAuth, cfg.Uploads.SignUpload)
	}

	mux.HandleFunc("GET /health", cfg.Health.Health)
	mux.HandleFunc("GET /ready", cfg.Health.Ready)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"service": "cafeswipe-api"})
	})

	return mux
}

// chain applies the given middleware outermost-first.
func chain(mws ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
