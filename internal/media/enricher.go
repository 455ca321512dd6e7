package media

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cafeswipe/server/internal/cafe"
)

// Defaults for the enrichment fan-out.
const (
	DefaultSignTTL     = 10800 * time.Second // 3 hours
	DefaultConcurrency = 8
)

// Enricher fills in signed URLs for every image on a page of cafés.
// Signing fans out across images with bounded concurrency; an image
// whose signing fails is omitted from the response so raw object keys
// never reach clients.
type Enricher struct {
	signer      Signer
	ttl         time.Duration
	concurrency int
	logger      *slog.Logger
	metrics     *Metrics
}

// EnricherConfig tunes the enrichment fan-out. Zero values fall back
// to the package defaults.
type EnricherConfig struct {
	SignTTL     time.Duration
	Concurrency int
	Logger      *slog.Logger
	Metrics     *Metrics
}

// NewEnricher creates an Enricher backed by the given signer.
func NewEnricher(signer Signer, cfg EnricherConfig) *Enricher {
	if cfg.SignTTL <= 0 {
		cfg.SignTTL = DefaultSignTTL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Enricher{
		signer:      signer,
		ttl:         cfg.SignTTL,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

// imageRef addresses one image across a page of cafés.
type imageRef struct {
	cafeIdx  int
	imageIdx int
}

// EnrichCafes signs every image URL on the page in place, then drops
// images that could not be signed. Café and image order is preserved.
// Returns the context error if the request was canceled mid-flight;
// individual signing failures are not errors.
func (e *Enricher) EnrichCafes(ctx context.Context, cafes []*cafe.Cafe) error {
	var refs []imageRef
	for ci, c := range cafes {
		for ii := range c.Images {
			refs = append(refs, imageRef{cafeIdx: ci, imageIdx: ii})
		}
	}
	if len(refs) == 0 {
		return ctx.Err()
	}

	urls := make([]string, len(refs))
	ok := make([]bool, len(refs))

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref imageRef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			key := cafes[ref.cafeIdx].Images[ref.imageIdx].Key
			e.metrics.IncSignRequests("get")
			url, err := e.signer.SignGetURL(ctx, key, e.ttl)
			if err != nil {
				e.metrics.IncSignFailures("get")
				e.logger.Warn("failed to sign image url, omitting image",
					"cafe_id", cafes[ref.cafeIdx].ID,
					"image_id", cafes[ref.cafeIdx].Images[ref.imageIdx].ID,
					"error", err,
				)
				return
			}
			urls[i] = url
			ok[i] = true
		}(i, ref)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	for i, ref := range refs {
		if ok[i] {
			cafes[ref.cafeIdx].Images[ref.imageIdx].URL = urls[i]
		}
	}
	for _, c := range cafes {
		kept := c.Images[:0]
		for _, img := range c.Images {
			if img.URL == "" {
				e.metrics.IncImagesOmitted()
				continue
			}
			kept = append(kept, img)
		}
		c.Images = kept
	}
	return nil
}

// EnrichCafe signs a single café's images.
func (e *Enricher) EnrichCafe(ctx context.Context, c *cafe.Cafe) error {
	return e.EnrichCafes(ctx, []*cafe.Cafe{c})
}
