package reconcile

import "ProductImporter/internal/domain"

// Snapshot is a read-only view of the persisted catalog keyed by identifier.
// Iteration follows the order the entries were loaded in.
type Snapshot struct {
	order []string
	byID  map[string]domain.StoredProduct
}

// NewSnapshot indexes products by identifier. A later duplicate replaces the
// earlier entry but keeps its position.
func NewSnapshot(products []domain.StoredProduct) *Snapshot {
	s := &Snapshot{byID: make(map[string]domain.StoredProduct, len(products))}
	for _, p := range products {
		if _, ok := s.byID[p.Identifier]; !ok {
			s.order = append(s.order, p.Identifier)
		}
		s.byID[p.Identifier] = p
	}
	return s
}

// Get looks an entry up by identifier.
func (s *Snapshot) Get(id string) (domain.StoredProduct, bool) {
	if s == nil {
		return domain.StoredProduct{}, false
	}
	p, ok := s.byID[id]
	return p, ok
}

// Len is the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Each visits entries in load order.
func (s *Snapshot) Each(fn func(domain.StoredProduct)) {
	if s == nil {
		return
	}
	for _, id := range s.order {
		fn(s.byID[id])
	}
}
