// Package reconcile diffs the accepted canonical products of one run against the
// persisted catalog and decides which entries to create, update or archive.
//
// Reconcile is a pure function of its arguments. It never writes foreign
// (voting) fields, never archives an exempt entry, and archives an active entry
// only after it has been missing for at least the stale threshold.
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"ProductImporter/internal/domain"
)

// DefaultStaleThreshold is how long an entry may go unseen before it is archived.
const DefaultStaleThreshold = 4 * 7 * 24 * time.Hour

// Plan is the outcome of one reconciliation.
type Plan struct {
	Actions         []domain.Action
	Inconsistencies []*domain.CatalogInconsistencyError
}

// Reconcile computes the plan for accepted against catalog.
func Reconcile(accepted []domain.CanonicalProduct, catalog *Snapshot, now time.Time, staleThreshold time.Duration) (*Plan, error) {
	if err := validateInput(accepted); err != nil {
		return nil, err
	}

	plan := &Plan{}
	seen := make(map[string]struct{}, len(accepted))

	for _, product := range accepted {
		seen[product.Identifier] = struct{}{}

		stored, exists := catalog.Get(product.Identifier)
		switch {
		case !exists:
			plan.Actions = append(plan.Actions, domain.CreateAction{Product: product, Seed: seed(product, now)})
		case !stored.ImportOwned:
			plan.Inconsistencies = append(plan.Inconsistencies, &domain.CatalogInconsistencyError{
				Identifier: product.Identifier,
				Reason:     fmt.Sprintf("%s entry is not import-owned; left untouched", stored.Lifecycle),
			})
		default:
			plan.Actions = append(plan.Actions, domain.UpdateAction{
				Identifier: product.Identifier,
				Fields: domain.ImportFields{
					Name:           product.Name,
					PriceRangeText: product.PriceRangeText,
					Category:       product.Category,
					LastImportedAt: now,
				},
			})
		}
	}

	catalog.Each(func(stored domain.StoredProduct) {
		if _, ok := seen[stored.Identifier]; ok {
			return
		}
		if !stored.ImportOwned || stored.Lifecycle != domain.LifecycleActive {
			return
		}
		// A zero LastImportedAt saturates to the maximum duration and counts as stale.
		if now.Sub(stored.LastImportedAt) < staleThreshold {
			return
		}
		plan.Actions = append(plan.Actions, domain.ArchiveAction{Identifier: stored.Identifier})
	})

	return plan, nil
}

func seed(product domain.CanonicalProduct, now time.Time) domain.StoredProduct {
	return domain.StoredProduct{
		Identifier:     product.Identifier,
		Name:           product.Name,
		PriceRangeText: product.PriceRangeText,
		Category:       product.Category,
		ImportOwned:    true,
		LastImportedAt: now,
		Lifecycle:      domain.LifecycleActive,
		Foreign:        domain.ForeignFields{PreviousBoycottWeeks: []string{}},
	}
}

func validateInput(accepted []domain.CanonicalProduct) error {
	var problems []*domain.MalformedCandidateError
	ids := make(map[string]struct{}, len(accepted))

	for _, p := range accepted {
		reason := ""
		switch {
		case strings.TrimSpace(p.Identifier) == "":
			reason = "empty identifier"
		case p.PriceLow.IsNegative() || p.PriceHigh.IsNegative():
			reason = "negative price"
		case p.PriceLow.GreaterThan(p.PriceHigh):
			reason = "price bounds out of order"
		default:
			if _, dup := ids[p.Identifier]; dup {
				reason = "identifier appears more than once"
			}
		}
		ids[p.Identifier] = struct{}{}

		if reason != "" {
			problems = append(problems, &domain.MalformedCandidateError{
				Identifier: p.Identifier,
				Low:        p.PriceLow,
				High:       p.PriceHigh,
				Reason:     reason,
			})
		}
	}

	if len(problems) > 0 {
		return &domain.MalformedInputError{Problems: problems}
	}
	return nil
}

// Counts tallies the plan per action class.
func (p *Plan) Counts() domain.ApplyCounts {
	var counts domain.ApplyCounts
	for _, a := range p.Actions {
		switch a.Kind() {
		case domain.ActionCreate:
			counts.Created++
		case domain.ActionUpdate:
			counts.Updated++
		case domain.ActionArchive:
			counts.Archived++
		}
	}
	return counts
}

// String renders one line per action followed by the skipped entries.
func (p *Plan) String() string {
	var b strings.Builder
	for _, a := range p.Actions {
		switch act := a.(type) {
		case domain.CreateAction:
			fmt.Fprintf(&b, "create %s name=%q price=%s category=%q sources=%s\n",
				act.Product.Identifier, act.Product.Name, act.Product.PriceRangeText,
				act.Product.Category, strings.Join(act.Product.Sources, ","))
		case domain.UpdateAction:
			fmt.Fprintf(&b, "update %s name=%q price=%s category=%q imported=%s\n",
				act.Identifier, act.Fields.Name, act.Fields.PriceRangeText,
				act.Fields.Category, act.Fields.LastImportedAt.UTC().Format(time.RFC3339))
		case domain.ArchiveAction:
			fmt.Fprintf(&b, "archive %s\n", act.Identifier)
		}
	}
	for _, inc := range p.Inconsistencies {
		fmt.Fprintf(&b, "skip %s: %s\n", inc.Identifier, inc.Reason)
	}
	return b.String()
}
