package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/heat-stress-etl/internal/domain"
)

// FanOutLoader loads each batch into several sinks in order. The first
// failure aborts the batch so offsets stay uncommitted and the batch is
// retried; sinks must therefore tolerate replays.
type FanOutLoader struct {
	sinks []namedLoader
}

type namedLoader struct {
	name   string
	loader BatchLoader
}

// NewFanOutLoader returns a loader writing to primary and then to each of
// the additional sinks registered with Add.
func NewFanOutLoader(name string, primary BatchLoader) *FanOutLoader {
	return &FanOutLoader{sinks: []namedLoader{{name: name, loader: primary}}}
}

// Add registers another sink.
func (f *FanOutLoader) Add(name string, l BatchLoader) *FanOutLoader {
	f.sinks = append(f.sinks, namedLoader{name: name, loader: l})
	return f
}

// LoadBatch writes events to every sink.
func (f *FanOutLoader) LoadBatch(ctx context.Context, events []domain.StationEvent) error {
	for _, s := range f.sinks {
		if err := s.loader.LoadBatch(ctx, events); err != nil {
			return fmt.Errorf("load %s: %w", s.name, err)
		}
	}
	return nil
}
