package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawObservation is a single price row taken from one chain feed.
type RawObservation struct {
	Identifier   string
	Label        string
	Price        decimal.Decimal
	CategoryHint string
	SourceName   string
}

// CanonicalProduct is the consolidated view of one identifier for the current run.
type CanonicalProduct struct {
	Identifier     string
	Name           string
	PriceLow       decimal.Decimal
	PriceHigh      decimal.Decimal
	Category       string
	Sources        []string
	PriceRangeText string
}

// LifecycleStatus enumerates catalog entry states.
type LifecycleStatus string

const (
	LifecycleActive   LifecycleStatus = "active"
	LifecycleArchived LifecycleStatus = "archived"
	LifecycleExempt   LifecycleStatus = "exempt"
)

// ParseLifecycle maps a persisted status to a lifecycle value. Rows written by the
// weekly boycott reset carry "boycotted", which is exempt from archival.
func ParseLifecycle(raw string) LifecycleStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "":
		return LifecycleActive
	case "archived":
		return LifecycleArchived
	default:
		return LifecycleExempt
	}
}

// ForeignFields are owned by the voting subsystem. The importer reads them and
// seeds them on create, nothing else.
type ForeignFields struct {
	CurrentWeekVotes     int
	TotalHistoricalVotes int
	IsPreviousBoycott    bool
	PreviousBoycottWeeks []string
}

// StoredProduct is a persisted catalog entry.
type StoredProduct struct {
	ProductID      string
	Identifier     string
	Name           string
	PriceRangeText string
	Category       string
	ImportOwned    bool
	LastImportedAt time.Time
	Lifecycle      LifecycleStatus
	Foreign        ForeignFields
}
