package ports

import (
	"context"
	"time"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
)

// BlobStore stores raw uploads and parsed JSON copies.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// URI returns the canonical storage locator for key.
	URI(key string) string
}

// DocumentExtractor submits raw document bytes to the extraction processor.
type DocumentExtractor interface {
	Process(ctx context.Context, content []byte, mimeType string) (*domain.ExtractedDocument, error)
}

// Warehouse is the tabular store used for duplicate lookup, persistence and reporting.
type Warehouse interface {
	FindDuplicates(ctx context.Context, invoiceID, supplierName string) ([]domain.DuplicateMatch, error)
	Insert(ctx context.Context, invoice *domain.ParsedInvoice) error
	CountInvoices(ctx context.Context) (int64, error)
	VendorTotals(ctx context.Context) ([]domain.VendorTotal, error)
}

// TextGenerator turns a prompt into generated text.
type TextGenerator interface {
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
}

// EventPublisher announces invoices that reached the warehouse.
type EventPublisher interface {
	PublishInvoiceStored(ctx context.Context, invoice *domain.ParsedInvoice) error
}

// PageCounter inspects a PDF payload.
type PageCounter interface {
	CountPages(content []byte) (int, error)
}

// PipelineMetrics receives pipeline observations.
type PipelineMetrics interface {
	ObserveBatch(files int)
	ObserveInvoice(outcome string)
	ObserveSummaryFailure()
	ObservePages(pages int)
}

// ReportRenderer serializes an admin report into a workbook.
type ReportRenderer interface {
	RenderXLSX(report *domain.AdminReport) ([]byte, error)
}
