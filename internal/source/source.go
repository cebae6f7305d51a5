// Package source implements the job source adapters behind discovery.
//
// Each adapter variant (api, rss, manual, mock) owns its own pagination
// and rate limiting; the discovery worker is agnostic to source type and
// selects adapters from a registry keyed by source id — a dispatch
// table, no inheritance.
package source

import (
	"context"
	"fmt"
	"sort"
	"time"

	"jobmate/campaign-service/internal/model"
)

// Source fetches normalised postings for one campaign. Implementations
// must return a finite batch and be restartable by re-supplying since;
// a malformed single posting is skipped, never fatal to the fetch.
type Source interface {
	ID() string
	Fetch(ctx context.Context, campaignID string, criteria model.SearchCriteria, since time.Time) ([]model.JobResult, error)
}

// Registry maps source ids to adapters.
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		r.sources[s.ID()] = s
	}
	return r
}

// Get returns the adapter for id.
func (r *Registry) Get(id string) (Source, error) {
	s, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", id)
	}
	return s, nil
}

// IDs returns all registered source ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
