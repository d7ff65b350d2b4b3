package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
)

func TestDuplicateCheckSkipsQueryWhenKeyMissing(t *testing.T) {
	warehouse := &warehouseFake{}
	checker := NewDuplicateChecker(warehouse)

	for _, tc := range []struct{ invoiceID, supplier string }{
		{"", "ACME"},
		{"INV-1", ""},
		{"", ""},
	} {
		matches, err := checker.Check(context.Background(), tc.invoiceID, tc.supplier)
		if err != nil {
			t.Fatalf("Check(%q, %q) error = %v", tc.invoiceID, tc.supplier, err)
		}
		if len(matches) != 0 {
			t.Fatalf("expected no matches, got %v", matches)
		}
	}
	if warehouse.queries != 0 {
		t.Fatalf("expected no warehouse queries, got %d", warehouse.queries)
	}
}

func TestDuplicateCheckReturnsMatches(t *testing.T) {
	warehouse := &warehouseFake{duplicates: map[string][]domain.DuplicateMatch{
		"INV-1|ACME": {{"invoice_id": "INV-1", "supplier_name": "ACME"}},
	}}
	checker := NewDuplicateChecker(warehouse)

	matches, err := checker.Check(context.Background(), "INV-1", "ACME")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(matches) != 1 || matches[0]["invoice_id"] != "INV-1" {
		t.Fatalf("unexpected matches: %v", matches)
	}
	if warehouse.queries != 1 {
		t.Fatalf("expected one query, got %d", warehouse.queries)
	}
}

func TestDuplicateCheckWrapsWarehouseError(t *testing.T) {
	checker := NewDuplicateChecker(&warehouseFake{findErr: errors.New("warehouse down")})

	_, err := checker.Check(context.Background(), "INV-1", "ACME")
	if err == nil || !strings.Contains(err.Error(), "warehouse down") {
		t.Fatalf("expected wrapped warehouse error, got %v", err)
	}
}
