package health

import "context"

// StorePinger checks the snapshot store.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks an embedding or language model provider.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexReporter reports the size of the published index.
type IndexReporter interface {
	Entries() int
}
