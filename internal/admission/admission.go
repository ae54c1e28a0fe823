// Package admission applies the business rules that decide which aggregated
// candidates enter the catalog.
package admission

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"ProductImporter/internal/domain"
)

// DefaultCurrencySymbol prefixes formatted price ranges.
const DefaultCurrencySymbol = "₪"

// Rules configure the filter.
type Rules struct {
	MinPrice          decimal.Decimal
	MinSources        int
	BannedSubstrings  []string
	AllowedCategories []string
	CurrencySymbol    string
}

// Validate checks rule bounds.
func (r Rules) Validate() error {
	if r.MinPrice.IsNegative() {
		return &domain.ValidationError{Field: "minPrice", Value: r.MinPrice.String(), Message: "must be >= 0"}
	}
	if r.MinSources < 1 {
		return &domain.ValidationError{Field: "minSources", Value: r.MinSources, Message: "must be >= 1"}
	}
	return nil
}

// Filter admits candidates according to Rules.
type Filter struct {
	rules   Rules
	allowed map[string]struct{}
	fold    cases.Caser
}

// New validates rules and builds a filter.
func New(rules Rules) (*Filter, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if rules.CurrencySymbol == "" {
		rules.CurrencySymbol = DefaultCurrencySymbol
	}

	f := &Filter{rules: rules, fold: cases.Fold()}
	if len(rules.AllowedCategories) > 0 {
		f.allowed = make(map[string]struct{}, len(rules.AllowedCategories))
		for _, c := range rules.AllowedCategories {
			f.allowed[f.foldCategory(c)] = struct{}{}
		}
	}
	return f, nil
}

// Admit returns the accepted candidates, in input order, with PriceRangeText set,
// plus the rejection counters. Each rejected candidate is counted exactly once,
// under the first rule it fails.
func (f *Filter) Admit(candidates []domain.CanonicalProduct) ([]domain.CanonicalProduct, domain.RunSummary) {
	var (
		accepted = make([]domain.CanonicalProduct, 0, len(candidates))
		summary  domain.RunSummary
	)

	for _, c := range candidates {
		switch f.check(c) {
		case rejectPrice:
			summary.RejectedByPrice++
		case rejectPattern:
			summary.RejectedByPattern++
		case rejectSources:
			summary.RejectedBySourceCount++
		case rejectCategory:
			summary.RejectedByCategory++
		default:
			c.PriceRangeText = FormatPriceRange(c.PriceLow, c.PriceHigh, f.rules.CurrencySymbol)
			accepted = append(accepted, c)
		}
	}

	return accepted, summary
}

type verdict int

const (
	accept verdict = iota
	rejectPrice
	rejectPattern
	rejectSources
	rejectCategory
)

func (f *Filter) check(c domain.CanonicalProduct) verdict {
	// A product stays if any observed price clears the floor.
	if c.PriceHigh.LessThan(f.rules.MinPrice) {
		return rejectPrice
	}
	for _, banned := range f.rules.BannedSubstrings {
		if banned != "" && strings.Contains(c.Name, banned) {
			return rejectPattern
		}
	}
	if len(c.Sources) < f.rules.MinSources {
		return rejectSources
	}
	if f.allowed != nil {
		if _, ok := f.allowed[f.foldCategory(c.Category)]; !ok {
			return rejectCategory
		}
	}
	return accept
}

func (f *Filter) foldCategory(c string) string {
	return f.fold.String(strings.TrimSpace(c))
}

// FormatPriceRange renders "₪8" or "₪8–12"; bounds are rounded half-to-even.
func FormatPriceRange(low, high decimal.Decimal, symbol string) string {
	lowText := low.RoundBank(0).StringFixed(0)
	if low.Equal(high) {
		return symbol + lowText
	}
	return symbol + lowText + "–" + high.RoundBank(0).StringFixed(0)
}
