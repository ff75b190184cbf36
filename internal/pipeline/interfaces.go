package pipeline

import (
	"context"
	"time"
)

// Fetcher is the gazette search capability. Implementations own one browser
// session and must not be shared across workers.
type Fetcher interface {
	// Search returns the document links matching the terms for one date.
	// A date with no matches returns ErrNoResults, not an empty slice.
	Search(ctx context.Context, date string, terms []string) ([]ResultLink, error)
	// FetchDocument retrieves one search result and splits it into pages.
	FetchDocument(ctx context.Context, link ResultLink) (Document, error)
	// Close releases the underlying session.
	Close()
}

// Enricher performs the per-case secondary lookup. Cases under seal return
// ErrNotFound.
type Enricher interface {
	Lookup(ctx context.Context, processNumber string) (SecondaryRecord, error)
}

// Sink receives terminal enriched publications. Implementations must
// tolerate repeated saves of the same process number (last write wins).
type Sink interface {
	Save(ctx context.Context, pub EnrichedPublication) error
}

// BlobStore archives raw fetched artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for pending dates.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
