package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
	"github.com/kirillkom/invoice-webapp/internal/core/ports"
)

type SummaryGenerator struct {
	generator ports.TextGenerator
	metrics   ports.PipelineMetrics
}

func NewSummaryGenerator(generator ports.TextGenerator, metrics ports.PipelineMetrics) *SummaryGenerator {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &SummaryGenerator{
		generator: generator,
		metrics:   metrics,
	}
}

// Summarize never fails: generation faults become a placeholder sentence so
// the upload carries on.
func (g *SummaryGenerator) Summarize(ctx context.Context, invoice *domain.ParsedInvoice) (summary string) {
	defer func() {
		if r := recover(); r != nil {
			summary = g.failed(invoice, fmt.Errorf("%v", r))
		}
	}()

	text, err := g.generator.GenerateFromPrompt(ctx, buildSummaryPrompt(invoice))
	if err != nil {
		return g.failed(invoice, err)
	}
	return strings.TrimSpace(text)
}

func (g *SummaryGenerator) failed(invoice *domain.ParsedInvoice, err error) string {
	slog.Warn("summary_generation_failed",
		"filename", invoice.Filename,
		"invoice_id", invoice.InvoiceID(),
		"error", err,
	)
	g.metrics.ObserveSummaryFailure()
	return fmt.Sprintf("(Failed to generate summary: %v)", err)
}

func buildSummaryPrompt(invoice *domain.ParsedInvoice) string {
	return fmt.Sprintf(`Create a one-sentence summary of this invoice:
- Invoice ID: %s
- Supplier: %s
- Receiver: %s
- Amount: %s %s
- Due date: %s
- Terms: %s
- Carrier: %s`,
		invoice.Get(domain.FieldInvoiceID),
		invoice.Get(domain.FieldSupplierName),
		invoice.Get(domain.FieldReceiverName),
		invoice.Get(domain.FieldTotalAmount),
		invoice.Get(domain.FieldCurrency),
		invoice.Get(domain.FieldDueDate),
		invoice.Get(domain.FieldPaymentTerms),
		invoice.Get(domain.FieldCarrier),
	)
}
