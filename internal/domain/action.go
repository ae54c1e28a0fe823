package domain

import "time"

// ActionKind tags a reconciliation action.
type ActionKind string

const (
	ActionCreate  ActionKind = "create"
	ActionUpdate  ActionKind = "update"
	ActionArchive ActionKind = "archive"
)

// Column names of the import-owned fields an update may touch.
const (
	ColumnName           = "name"
	ColumnPriceRange     = "price_range"
	ColumnCategory       = "category"
	ColumnLastImportedAt = "last_imported_at"
)

// ImportOwnedColumns lists every column an UpdateAction is allowed to write.
var ImportOwnedColumns = []string{ColumnName, ColumnPriceRange, ColumnCategory, ColumnLastImportedAt}

// Action is one change the store adapter must apply. The set of implementations is closed.
type Action interface {
	Kind() ActionKind
	ID() string
	sealed()
}

// CreateAction inserts a catalog entry that has never been seen.
type CreateAction struct {
	Product CanonicalProduct
	Seed    StoredProduct
}

// ImportFields is the payload of an update: the import-owned fields and nothing else.
type ImportFields struct {
	Name           string
	PriceRangeText string
	Category       string
	LastImportedAt time.Time
}

// UpdateAction refreshes the import-owned fields of an existing entry.
type UpdateAction struct {
	Identifier string
	Fields     ImportFields
}

// ArchiveAction marks a stale entry as archived.
type ArchiveAction struct {
	Identifier string
}

func (CreateAction) Kind() ActionKind  { return ActionCreate }
func (UpdateAction) Kind() ActionKind  { return ActionUpdate }
func (ArchiveAction) Kind() ActionKind { return ActionArchive }

func (a CreateAction) ID() string  { return a.Product.Identifier }
func (a UpdateAction) ID() string  { return a.Identifier }
func (a ArchiveAction) ID() string { return a.Identifier }

func (CreateAction) sealed()  {}
func (UpdateAction) sealed()  {}
func (ArchiveAction) sealed() {}

// Columns renders the update payload keyed by column name.
func (a UpdateAction) Columns() map[string]any {
	return map[string]any{
		ColumnName:           a.Fields.Name,
		ColumnPriceRange:     a.Fields.PriceRangeText,
		ColumnCategory:       a.Fields.Category,
		ColumnLastImportedAt: a.Fields.LastImportedAt,
	}
}

// ApplyCounts reports how many actions of each class the store adapter applied.
type ApplyCounts struct {
	Created  int
	Updated  int
	Archived int
}
