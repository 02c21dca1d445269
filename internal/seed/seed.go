// Package seed builds the per-fan media associations written to the video
// data file.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/torosent/fanload/internal/api"
)

// Quantity bounds for synthesized media items.
const (
	MinQuantity = 1
	MaxQuantity = 5000
)

// MediaItem is one scheduled video with a synthesized play quantity.
// Field order is the order the load scenario reads them in. Absent contract
// fields are left out of the encoding.
type MediaItem struct {
	ContractID   json.RawMessage `json:"contrato_id,omitempty"`
	ContractType json.RawMessage `json:"contrato_tipo,omitempty"`
	VideoID      json.RawMessage `json:"video_id"`
	Quantity     int             `json:"quantidade"`
}

// MediaAssociation groups the media items of one fan for one date.
type MediaAssociation struct {
	Serial string
	Data   string
	Videos []MediaItem
}

// VideoLister fetches the videos scheduled for a fan on a date.
type VideoLister interface {
	FanVideos(ctx context.Context, serial, date string) ([]api.Video, error)
}

// FetchError reports the fan whose video lookup failed.
type FetchError struct {
	Serial string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fan %s: %v", e.Serial, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher issues one video lookup per fan concurrently.
type Fetcher struct {
	lister   VideoLister
	limiter  *rate.Limiter
	quantity func() int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRate caps lookups per second. A non-positive rate means unlimited.
func WithRate(perSecond float64) Option {
	return func(f *Fetcher) {
		f.limiter = newLimiter(perSecond)
	}
}

// WithQuantity replaces the random quantity source.
func WithQuantity(fn func() int) Option {
	return func(f *Fetcher) {
		if fn != nil {
			f.quantity = fn
		}
	}
}

// NewFetcher creates a Fetcher reading from lister.
func NewFetcher(lister VideoLister, opts ...Option) *Fetcher {
	f := &Fetcher{
		lister:   lister,
		limiter:  newLimiter(0),
		quantity: RandomQuantity,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// RandomQuantity returns a uniform integer in [MinQuantity, MaxQuantity].
func RandomQuantity() int {
	return rand.IntN(MaxQuantity-MinQuantity+1) + MinQuantity
}

// Fetch looks up the videos of every fan for date. All lookups are started
// together; the first failure cancels the rest and no partial result is
// returned. Results keep the order of fans.
func (f *Fetcher) Fetch(ctx context.Context, fans []api.Fan, date string) ([]MediaAssociation, error) {
	out := make([]MediaAssociation, len(fans))
	g, gctx := errgroup.WithContext(ctx)

	for i, fan := range fans {
		g.Go(func() error {
			if err := f.limiter.Wait(gctx); err != nil {
				return &FetchError{Serial: fan.Serial, Err: err}
			}
			videos, err := f.lister.FanVideos(gctx, fan.Serial, date)
			if err != nil {
				return &FetchError{Serial: fan.Serial, Err: err}
			}
			out[i] = MediaAssociation{
				Serial: fan.Serial,
				Data:   date,
				Videos: f.annotate(videos),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// annotate runs on fetch goroutines, so the quantity source must be safe for
// concurrent use.
func (f *Fetcher) annotate(videos []api.Video) []MediaItem {
	items := make([]MediaItem, 0, len(videos))
	for _, v := range videos {
		items = append(items, MediaItem{
			ContractID:   v.ContractID,
			ContractType: v.ContractType,
			VideoID:      v.VideoID,
			Quantity:     f.quantity(),
		})
	}
	return items
}
