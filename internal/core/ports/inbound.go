package ports

import (
	"context"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
)

// InvoiceUploader is the inbound contract for batch invoice upload orchestration.
type InvoiceUploader interface {
	ProcessBatch(ctx context.Context, files []domain.UploadFile) (*domain.BatchResult, error)
}

// AdminReporter is the inbound read model for warehouse aggregates.
type AdminReporter interface {
	Report(ctx context.Context) (*domain.AdminReport, error)
}

// AdminExporter renders the admin report as a spreadsheet download.
type AdminExporter interface {
	ExportXLSX(ctx context.Context) ([]byte, error)
}
