package domain

import "context"

// DeliveryState is a step of the cache-or-fetch pipeline.
type DeliveryState string

const (
	StateLookup    DeliveryState = "lookup"
	StateCacheHit  DeliveryState = "cache_hit"
	StateFetching  DeliveryState = "fetching"
	StateStaging   DeliveryState = "staging"
	StateUploading DeliveryState = "uploading"
	StateSaving    DeliveryState = "saving"
	StateCached    DeliveryState = "cached"
	StateFailed    DeliveryState = "failed"
)

type DeliveryService interface {
	Deliver(ctx context.Context, req DeliveryRequest) (*Delivery, error)
}

type DeliveryRequest struct {
	Reciter  Reciter
	Surah    int
	Ayah     *int
	Language string
}

func (r DeliveryRequest) Key() CacheKey {
	return CacheKey{ReciterIdentifier: r.Reciter.Identifier, Surah: r.Surah, Ayah: r.Ayah}
}

// Delivery is what the presentation layer renders and sends.
type Delivery struct {
	Key              CacheKey      `json:"-"`
	ContentReference string        `json:"content_reference"`
	Title            string        `json:"title"`
	Performer        string        `json:"performer"`
	Caption          string        `json:"caption"`
	State            DeliveryState `json:"state"`
}
