package media

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/cafeswipe/server/internal/cafe"
)

// fakeSigner signs keys deterministically and fails the keys listed in
// failKeys. It tracks peak concurrency.
type fakeSigner struct {
	mu       sync.Mutex
	failKeys map[string]bool
	delay    time.Duration

	inFlight int32
	peak     int32
}

func (f *fakeSigner) SignGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		old := atomic.LoadInt32(&f.peak)
		if cur <= old || atomic.CompareAndSwapInt32(&f.peak, old, cur) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	fail := f.failKeys[key]
	f.mu.Unlock()
	if fail {
		return "", &SigningError{Key: key, Err: errors.New("backend unavailable")}
	}
	return "https://signed.example/" + key, nil
}

func testCafes() []*cafe.Cafe {
	return []*cafe.Cafe{
		{
			ID: 1,
			Images: []cafe.Image{
				{ID: 10, Order: 0, Key: "cafes/1/0.jpg"},
				{ID: 11, Order: 1, Key: "cafes/1/1.jpg"},
				{ID: 12, Order: 2, Key: "cafes/1/2.jpg"},
			},
		},
		{
			ID: 2,
			Images: []cafe.Image{
				{ID: 20, Order: 0, Key: "cafes/2/0.jpg"},
			},
		},
		{ID: 3},
	}
}

func TestEnricherSignsAllImages(t *testing.T) {
	signer := &fakeSigner{}
	e := NewEnricher(signer, EnricherConfig{})

	cafes := testCafes()
	if err := e.EnrichCafes(context.Background(), cafes); err != nil {
		t.Fatalf("EnrichCafes() error = %v", err)
	}

	if len(cafes[0].Images) != 3 {
		t.Fatalf("cafe 1 has %d images, want 3", len(cafes[0].Images))
	}
	for i, img := range cafes[0].Images {
		want := "https://signed.example/" + img.Key
		if img.URL != want {
			t.Errorf("image[%d].URL = %q, want %q", i, img.URL, want)
		}
		if img.Order != i {
			t.Errorf("image[%d].Order = %d, order not preserved", i, img.Order)
		}
	}
	if cafes[1].Images[0].URL == "" {
		t.Error("cafe 2 image not signed")
	}
}

func TestEnricherOmitsFailedImages(t *testing.T) {
	signer := &fakeSigner{failKeys: map[string]bool{"cafes/1/1.jpg": true}}
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	e := NewEnricher(signer, EnricherConfig{Metrics: metrics})
	cafes := testCafes()
	if err := e.EnrichCafes(context.Background(), cafes); err != nil {
		t.Fatalf("EnrichCafes() error = %v", err)
	}

	// The failed image is dropped; the survivors keep their relative order.
	if len(cafes[0].Images) != 2 {
		t.Fatalf("cafe 1 has %d images, want 2", len(cafes[0].Images))
	}
	if cafes[0].Images[0].ID != 10 || cafes[0].Images[1].ID != 12 {
		t.Errorf("surviving image IDs = [%d %d], want [10 12]",
			cafes[0].Images[0].ID, cafes[0].Images[1].ID)
	}
	for _, img := range cafes[0].Images {
		if img.URL == "" {
			t.Error("surviving image has no signed URL")
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	var omitted *dto.MetricFamily
	for i := range families {
		if families[i].GetName() == MetricImagesOmitted {
			omitted = families[i]
			break
		}
	}
	if omitted == nil {
		t.Fatal("media_images_omitted_total metric not found")
	}
	if got := omitted.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("media_images_omitted_total = %v, want 1", got)
	}
}

func TestEnricherRespectsConcurrencyLimit(t *testing.T) {
	signer := &fakeSigner{delay: 5 * time.Millisecond}
	e := NewEnricher(signer, EnricherConfig{Concurrency: 2})

	cafes := make([]*cafe.Cafe, 0, 10)
	for i := int64(1); i <= 10; i++ {
		cafes = append(cafes, &cafe.Cafe{
			ID:     i,
			Images: []cafe.Image{{ID: i, Key: "cafes/k.jpg"}},
		})
	}
	if err := e.EnrichCafes(context.Background(), cafes); err != nil {
		t.Fatalf("EnrichCafes() error = %v", err)
	}

	if peak := atomic.LoadInt32(&signer.peak); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestEnricherCanceledContext(t *testing.T) {
	signer := &fakeSigner{delay: 50 * time.Millisecond}
	e := NewEnricher(signer, EnricherConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.EnrichCafes(ctx, testCafes())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("EnrichCafes() error = %v, want context.Canceled", err)
	}
}

func TestEnricherNoImages(t *testing.T) {
	e := NewEnricher(&fakeSigner{}, EnricherConfig{})
	if err := e.EnrichCafes(context.Background(), []*cafe.Cafe{{ID: 1}}); err != nil {
		t.Errorf("EnrichCafes() error = %v", err)
	}
	if err := e.EnrichCafes(context.Background(), nil); err != nil {
		t.Errorf("EnrichCafes(nil) error = %v", err)
	}
}

func TestSigningErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := &SigningError{Key: "cafes/1/0.jpg", Err: base}
	if !errors.Is(err, base) {
		t.Error("SigningError should unwrap to its cause")
	}
	if err.Error() == "" {
		t.Error("SigningError message is empty")
	}
}
