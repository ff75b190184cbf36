package sink

import (
	"context"

	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

// Multi fans one Save out to several sinks. The first error stops the fan-out
// so the caller retries the whole date; sinks must tolerate repeated saves.
type Multi struct {
	sinks []pipeline.Sink
}

// NewMulti builds a fan-out over the given sinks.
func NewMulti(sinks ...pipeline.Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Save writes the publication to every sink in order.
func (m *Multi) Save(ctx context.Context, pub pipeline.EnrichedPublication) error {
	for _, s := range m.sinks {
		if err := s.Save(ctx, pub); err != nil {
			return err
		}
	}
	return nil
}
