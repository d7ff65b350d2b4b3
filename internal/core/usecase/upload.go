package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
	"github.com/kirillkom/invoice-webapp/internal/core/ports"
)

const (
	pdfContentType  = "application/pdf"
	jsonContentType = "application/json"
)

// ErrNoFiles is returned when the batch is empty or its first file has no name.
var ErrNoFiles = errors.New("no pdf files provided")

type UploadConfig struct {
	UploadPrefix string
	ParsedPrefix string
	SignedURLTTL time.Duration
}

// UploadOptions carries the optional collaborators of the upload pipeline.
type UploadOptions struct {
	Events  ports.EventPublisher
	Pages   ports.PageCounter
	Metrics ports.PipelineMetrics
}

type UploadInvoicesUseCase struct {
	cfg        UploadConfig
	store      ports.BlobStore
	extractor  ports.DocumentExtractor
	summarizer *SummaryGenerator
	duplicates *DuplicateChecker
	warehouse  ports.Warehouse

	events  ports.EventPublisher
	pages   ports.PageCounter
	metrics ports.PipelineMetrics
}

func NewUploadInvoicesUseCase(
	cfg UploadConfig,
	store ports.BlobStore,
	extractor ports.DocumentExtractor,
	summarizer *SummaryGenerator,
	duplicates *DuplicateChecker,
	warehouse ports.Warehouse,
	options UploadOptions,
) *UploadInvoicesUseCase {
	metrics := options.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &UploadInvoicesUseCase{
		cfg:        cfg,
		store:      store,
		extractor:  extractor,
		summarizer: summarizer,
		duplicates: duplicates,
		warehouse:  warehouse,
		events:     options.Events,
		pages:      options.Pages,
		metrics:    metrics,
	}
}

// ProcessBatch handles files strictly in order. The first duplicate stops the
// batch; files already written stay written.
func (uc *UploadInvoicesUseCase) ProcessBatch(ctx context.Context, files []domain.UploadFile) (*domain.BatchResult, error) {
	if len(files) == 0 || files[0].Filename == "" {
		slog.Warn("upload_no_files")
		return nil, domain.WrapError(domain.ErrInvalidInput, "process batch", ErrNoFiles)
	}
	uc.metrics.ObserveBatch(len(files))

	result := &domain.BatchResult{Invoices: make([]*domain.ParsedInvoice, 0, len(files))}
	for _, file := range files {
		invoice, matches, err := uc.processFile(ctx, file)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			result.Duplicate = &domain.DuplicateConflict{Invoice: invoice, Matches: matches}
			return result, nil
		}
		result.Invoices = append(result.Invoices, invoice)
	}

	slog.Info("upload_batch_completed", "invoices", len(result.Invoices))
	return result, nil
}

func (uc *UploadInvoicesUseCase) processFile(ctx context.Context, file domain.UploadFile) (*domain.ParsedInvoice, []domain.DuplicateMatch, error) {
	slog.Info("upload_file_processing", "filename", file.Filename, "bytes", len(file.Content))

	blobKey := uc.cfg.UploadPrefix + file.Filename
	content, err := uc.storeRaw(ctx, blobKey, file.Content)
	if err != nil {
		return nil, nil, err
	}
	uc.inspectPages(file.Filename, content)

	invoice, err := uc.extract(ctx, content)
	if err != nil {
		return nil, nil, err
	}
	invoice.Filename = file.Filename
	invoice.Summary = uc.summarizer.Summarize(ctx, invoice)

	if err := uc.attachLocators(ctx, invoice, blobKey); err != nil {
		return nil, nil, err
	}

	matches, err := uc.duplicates.Check(ctx, invoice.InvoiceID(), invoice.SupplierName())
	if err != nil {
		return nil, nil, err
	}
	if len(matches) > 0 {
		uc.duplicateDetected(invoice, len(matches))
		return invoice, matches, nil
	}

	if err := uc.persist(ctx, invoice); err != nil {
		if !domain.IsKind(err, domain.ErrDuplicateInvoice) {
			return nil, nil, err
		}
		// A concurrent upload stored the same invoice between check and insert.
		// The parsed copy written above is left in place; same-name uploads share
		// one parsed key, so it holds whichever writer finished last.
		matches, err = uc.matchesAfterConflict(ctx, invoice)
		if err != nil {
			return nil, nil, err
		}
		uc.duplicateDetected(invoice, len(matches))
		return invoice, matches, nil
	}

	uc.metrics.ObserveInvoice(OutcomeStored)
	uc.publish(ctx, invoice)
	return invoice, nil, nil
}

// storeRaw writes the upload and reads it back so extraction sees exactly what was persisted.
func (uc *UploadInvoicesUseCase) storeRaw(ctx context.Context, key string, content []byte) ([]byte, error) {
	if err := uc.store.Put(ctx, key, pdfContentType, content); err != nil {
		return nil, fmt.Errorf("store upload %s: %w", key, err)
	}
	stored, err := uc.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read back upload %s: %w", key, err)
	}
	return stored, nil
}

func (uc *UploadInvoicesUseCase) extract(ctx context.Context, content []byte) (*domain.ParsedInvoice, error) {
	doc, err := uc.extractor.Process(ctx, content, pdfContentType)
	if err != nil {
		return nil, fmt.Errorf("extract document: %w", err)
	}
	return NormalizeFields(doc), nil
}

func (uc *UploadInvoicesUseCase) attachLocators(ctx context.Context, invoice *domain.ParsedInvoice, key string) error {
	invoice.GCSURI = uc.store.URI(key)
	viewURL, err := uc.store.SignedURL(ctx, key, uc.cfg.SignedURLTTL)
	if err != nil {
		return fmt.Errorf("sign view url %s: %w", key, err)
	}
	invoice.ViewURL = viewURL
	return nil
}

func (uc *UploadInvoicesUseCase) persist(ctx context.Context, invoice *domain.ParsedInvoice) error {
	payload, err := json.MarshalIndent(invoice, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal parsed invoice: %w", err)
	}
	parsedKey := uc.cfg.ParsedPrefix + parsedFilename(invoice.Filename)
	if err := uc.store.Put(ctx, parsedKey, jsonContentType, payload); err != nil {
		return fmt.Errorf("store parsed invoice %s: %w", parsedKey, err)
	}
	if err := uc.warehouse.Insert(ctx, invoice); err != nil {
		return fmt.Errorf("insert warehouse row: %w", err)
	}
	return nil
}

func (uc *UploadInvoicesUseCase) matchesAfterConflict(ctx context.Context, invoice *domain.ParsedInvoice) ([]domain.DuplicateMatch, error) {
	matches, err := uc.duplicates.Check(ctx, invoice.InvoiceID(), invoice.SupplierName())
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		matches = []domain.DuplicateMatch{{
			domain.FieldInvoiceID:    invoice.InvoiceID(),
			domain.FieldSupplierName: invoice.SupplierName(),
		}}
	}
	return matches, nil
}

func (uc *UploadInvoicesUseCase) duplicateDetected(invoice *domain.ParsedInvoice, matches int) {
	slog.Info("upload_duplicate_detected",
		"filename", invoice.Filename,
		"invoice_id", invoice.InvoiceID(),
		"supplier_name", invoice.SupplierName(),
		"matches", matches,
	)
	uc.metrics.ObserveInvoice(OutcomeDuplicate)
}

func (uc *UploadInvoicesUseCase) inspectPages(filename string, content []byte) {
	if uc.pages == nil {
		return
	}
	pages, err := uc.pages.CountPages(content)
	if err != nil {
		slog.Warn("upload_pdf_inspect_failed", "filename", filename, "error", err)
		return
	}
	slog.Debug("upload_pdf_inspected", "filename", filename, "pages", pages)
	uc.metrics.ObservePages(pages)
}

func (uc *UploadInvoicesUseCase) publish(ctx context.Context, invoice *domain.ParsedInvoice) {
	if uc.events == nil {
		return
	}
	if err := uc.events.PublishInvoiceStored(ctx, invoice); err != nil {
		slog.Warn("invoice_event_publish_failed", "filename", invoice.Filename, "error", err)
	}
}

func parsedFilename(filename string) string {
	if strings.HasSuffix(filename, ".pdf") {
		return strings.TrimSuffix(filename, ".pdf") + ".json"
	}
	return filename
}
