package analysis

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Registry runs the registered providers concurrently over one context.
// Registration happens once at startup; Run is safe for concurrent use.
type Registry struct {
	providers []Provider
	log       zerolog.Logger
}

// NewRegistry creates a new analysis registry
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		log: log.With().Str("component", "analysis").Logger(),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(provider Provider) {
	r.providers = append(r.providers, provider)
	r.log.Info().Str("provider", provider.Name()).Msg("Analysis provider registered")
}

// Providers returns the names of all registered providers
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for _, provider := range r.providers {
		names = append(names, provider.Name())
	}
	return names
}

// Run fans out to every provider concurrently and collects their reports.
// The first provider error cancels the siblings and fails the run. Reports
// come back in provider name order regardless of completion order.
func (r *Registry) Run(ctx context.Context, actx *Context) ([]Report, error) {
	group, groupCtx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	reports := make([]Report, 0, len(r.providers))

	for _, provider := range r.providers {
		provider := provider
		group.Go(func() error {
			report, err := provider.Analyze(groupCtx, actx)
			if err != nil {
				return fmt.Errorf("%s analysis failed: %w", provider.Name(), err)
			}

			mu.Lock()
			reports = append(reports, *report)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Provider < reports[j].Provider
	})

	return reports, nil
}
