// Package aggregate groups raw chain observations by identifier and reduces each
// group to a canonical product candidate.
package aggregate

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"ProductImporter/internal/domain"
	"ProductImporter/internal/normalize"
)

// Bucket holds every observation seen for one identifier.
type Bucket struct {
	Names      *Tally
	Prices     []decimal.Decimal
	Categories *Tally
	sources    map[string]struct{}
}

// NewBucket returns an empty bucket.
func NewBucket() *Bucket {
	return &Bucket{
		Names:      NewTally(),
		Categories: NewTally(),
		sources:    map[string]struct{}{},
	}
}

// Add records one already-normalized observation.
func (b *Bucket) Add(name string, price decimal.Decimal, category, source string) {
	b.Names.Add(name)
	b.Prices = append(b.Prices, price)
	if category = strings.TrimSpace(category); category != "" {
		b.Categories.Add(category)
	}
	if source = strings.TrimSpace(source); source != "" {
		b.sources[source] = struct{}{}
	}
}

// Sources returns the distinct contributing sources, sorted.
func (b *Bucket) Sources() []string {
	out := make([]string, 0, len(b.sources))
	for name := range b.sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Aggregation is the result of one grouping pass.
type Aggregation struct {
	Buckets map[string]*Bucket
	Order   []string
	Invalid []*domain.InvalidObservationError
}

// Aggregate validates and groups observations. Invalid rows are dropped and
// reported in Invalid; they never stop the pass.
func Aggregate(observations []domain.RawObservation, policy normalize.Policy) *Aggregation {
	if policy == nil {
		policy = normalize.NewTokenPolicy()
	}

	agg := &Aggregation{Buckets: map[string]*Bucket{}}
	for _, obs := range observations {
		if err := validate(obs); err != nil {
			agg.Invalid = append(agg.Invalid, err)
			continue
		}

		id := strings.TrimSpace(obs.Identifier)
		bucket, ok := agg.Buckets[id]
		if !ok {
			bucket = NewBucket()
			agg.Buckets[id] = bucket
			agg.Order = append(agg.Order, id)
		}

		bucket.Add(policy.Normalize(obs.Label), obs.Price, obs.CategoryHint, obs.SourceName)
	}

	return agg
}

// Candidates reduces every bucket in first-seen order. A bucket that cannot be
// reduced is reported for its identifier alone.
func (a *Aggregation) Candidates() ([]domain.CanonicalProduct, []*domain.MalformedCandidateError) {
	var (
		products  = make([]domain.CanonicalProduct, 0, len(a.Order))
		malformed []*domain.MalformedCandidateError
	)

	for _, id := range a.Order {
		product, err := Reduce(id, a.Buckets[id])
		if err != nil {
			malformed = append(malformed, err)
			continue
		}
		products = append(products, product)
	}

	return products, malformed
}

// Reduce collapses one bucket into a candidate.
func Reduce(id string, bucket *Bucket) (domain.CanonicalProduct, *domain.MalformedCandidateError) {
	if bucket == nil || len(bucket.Prices) == 0 {
		return domain.CanonicalProduct{}, &domain.MalformedCandidateError{Identifier: id, Reason: "no prices"}
	}

	low, high := decimal.Min(bucket.Prices[0], bucket.Prices[1:]...), decimal.Max(bucket.Prices[0], bucket.Prices[1:]...)
	if low.IsNegative() || low.GreaterThan(high) {
		return domain.CanonicalProduct{}, &domain.MalformedCandidateError{Identifier: id, Low: low, High: high, Reason: "price bounds out of order"}
	}

	sources := bucket.Sources()
	if len(sources) == 0 {
		return domain.CanonicalProduct{}, &domain.MalformedCandidateError{Identifier: id, Low: low, High: high, Reason: "no contributing source"}
	}

	name, _ := bucket.Names.MostCommon()
	category, _ := bucket.Categories.MostCommon()

	return domain.CanonicalProduct{
		Identifier: id,
		Name:       name,
		PriceLow:   low,
		PriceHigh:  high,
		Category:   category,
		Sources:    sources,
	}, nil
}

func validate(obs domain.RawObservation) *domain.InvalidObservationError {
	reason := ""
	switch {
	case strings.TrimSpace(obs.Identifier) == "":
		reason = "missing identifier"
	case strings.TrimSpace(obs.Label) == "":
		reason = "missing label"
	case !obs.Price.IsPositive():
		reason = "price missing or not positive"
	case strings.TrimSpace(obs.SourceName) == "":
		reason = "missing source"
	}
	if reason == "" {
		return nil
	}
	return &domain.InvalidObservationError{Identifier: obs.Identifier, Source: obs.SourceName, Reason: reason}
}
