package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ProductImporter/internal/domain"
)

// Feed is one concrete endpoint or path a chain publishes prices at.
type Feed struct {
	Name string
	URL  string
}

// Request carries all parameters required to scan a single chain.
type Request struct {
	SourceName string
	Feeds      []Feed
	Options    map[string]string
}

// Scanner captures a single strategy implementation (price XML, CSV dumps, HTML lists).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.RawObservation, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds a registry, optionally pre-populated.
func NewRegistry(scanners ...Scanner) *Registry {
	r := &Registry{scanners: map[string]Scanner{}}
	for _, s := range scanners {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %q is not registered (known: %s)", name, strings.Join(r.Names(), ", "))
}

// Names lists registered strategies in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
