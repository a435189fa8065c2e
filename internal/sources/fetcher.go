// Package sources gathers raw posting records from the configured sources.
package sources

import (
	"context"

	"jobwatch-engine/internal/domain"
)

type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.RawRecord, error)
}

// Finalizer is implemented by fetchers that owe their source an
// acknowledgement once the run's state is durable, e.g. marking mail read.
type Finalizer interface {
	Finalize(ctx context.Context) error
}
