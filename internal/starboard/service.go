// Package starboard implements the reaction-aggregation core: a registry of
// starboard channels, a pipeline that filters and resolves raw gateway
// reaction packets, and a stateless threshold engine that publishes typed
// domain events. Vote counts are never stored; they are re-read from live
// platform state on every event.
package starboard

import (
	"context"
	"log/slog"
)

// Service wires the core together. Construct it once at startup, subscribe
// listeners on Bus, Load the registry, then feed gateway packets into
// Normalizer.
type Service struct {
	Bus        *Bus
	Registry   *Registry
	Aggregator *Aggregator
	Normalizer *Normalizer
}

// New builds the service. The platform client is the one required
// collaborator; store may be nil to disable persistence.
func New(log *slog.Logger, client Client, store ConfigStore, defaults Options) (*Service, error) {
	if client == nil {
		return nil, ErrMissingClient
	}

	bus := NewBus(log)
	registry := NewRegistry(log, store, bus, defaults)
	aggregator := NewAggregator(log, bus, client)
	normalizer := NewNormalizer(log, registry, client, aggregator)

	return &Service{
		Bus:        bus,
		Registry:   registry,
		Aggregator: aggregator,
		Normalizer: normalizer,
	}, nil
}

// Start loads the registry and launches the pipeline consumer. A storage
// format error aborts startup.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Registry.Load(ctx); err != nil {
		return err
	}
	go s.Normalizer.Run(ctx)
	return nil
}
