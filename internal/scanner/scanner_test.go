package scanner

import (
	"context"
	"strings"
	"testing"

	"ProductImporter/internal/domain"
)

type namedScanner string

func (n namedScanner) Name() string { return string(n) }

func (n namedScanner) Scan(context.Context, Request) ([]domain.RawObservation, error) {
	return nil, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(namedScanner("html"), namedScanner("csv"))

	got, err := reg.Resolve("csv")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got.Name() != "csv" {
		t.Fatalf("resolved %q", got.Name())
	}
}

func TestRegistryResolveUnknownListsKnownScanners(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(namedScanner("html"), namedScanner("csv"))

	_, err := reg.Resolve("xls")
	if err == nil {
		t.Fatal("expected error for unknown scanner")
	}
	if !strings.Contains(err.Error(), "known: csv, html") {
		t.Fatalf("unexpected error: %v", err)
	}
}
