package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
	"github.com/kirillkom/invoice-webapp/internal/core/ports"
)

type DuplicateChecker struct {
	warehouse ports.Warehouse
}

func NewDuplicateChecker(warehouse ports.Warehouse) *DuplicateChecker {
	return &DuplicateChecker{warehouse: warehouse}
}

// Check returns warehouse rows matching both keys. No query is issued when
// either key is empty.
func (c *DuplicateChecker) Check(ctx context.Context, invoiceID, supplierName string) ([]domain.DuplicateMatch, error) {
	if invoiceID == "" || supplierName == "" {
		return nil, nil
	}
	matches, err := c.warehouse.FindDuplicates(ctx, invoiceID, supplierName)
	if err != nil {
		return nil, fmt.Errorf("query duplicate invoices: %w", err)
	}
	return matches, nil
}
