package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
	"github.com/kirillkom/invoice-webapp/internal/core/ports"
)

type AdminReportUseCase struct {
	warehouse ports.Warehouse
}

func NewAdminReportUseCase(warehouse ports.Warehouse) *AdminReportUseCase {
	return &AdminReportUseCase{warehouse: warehouse}
}

func (uc *AdminReportUseCase) Report(ctx context.Context) (*domain.AdminReport, error) {
	total, err := uc.warehouse.CountInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("count invoices: %w", err)
	}
	vendors, err := uc.warehouse.VendorTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate vendor totals: %w", err)
	}
	if vendors == nil {
		vendors = []domain.VendorTotal{}
	}
	return &domain.AdminReport{
		TotalCount: total,
		Vendors:    vendors,
	}, nil
}
