package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
)

func TestSummarizeBuildsPromptAndTrimsResponse(t *testing.T) {
	generator := &generatorFake{text: "  Invoice 42 from ACME for 10 USD.\n"}
	summarizer := NewSummaryGenerator(generator, nil)

	invoice := &domain.ParsedInvoice{Fields: map[string]string{
		"invoice_id":    "42",
		"supplier_name": "ACME",
		"total_amount":  "10",
		"currency":      "USD",
	}}
	summary := summarizer.Summarize(context.Background(), invoice)

	if summary != "Invoice 42 from ACME for 10 USD." {
		t.Fatalf("unexpected summary %q", summary)
	}
	if len(generator.prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(generator.prompts))
	}
	prompt := generator.prompts[0]
	for _, want := range []string{
		"one-sentence summary",
		"- Invoice ID: 42",
		"- Supplier: ACME",
		"- Amount: 10 USD",
		"- Carrier: ",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestSummarizeMissingFieldsRenderEmpty(t *testing.T) {
	generator := &generatorFake{text: "ok"}
	summarizer := NewSummaryGenerator(generator, nil)

	summarizer.Summarize(context.Background(), &domain.ParsedInvoice{Fields: map[string]string{}})

	if !strings.Contains(generator.prompts[0], "- Receiver: \n") {
		t.Fatalf("expected empty receiver line, got:\n%s", generator.prompts[0])
	}
}

func TestSummarizeConvertsFailureToPlaceholder(t *testing.T) {
	metrics := &metricsFake{}
	summarizer := NewSummaryGenerator(&generatorFake{err: errors.New("quota exceeded")}, metrics)

	summary := summarizer.Summarize(context.Background(), &domain.ParsedInvoice{Fields: map[string]string{}})

	if summary != "(Failed to generate summary: quota exceeded)" {
		t.Fatalf("unexpected placeholder %q", summary)
	}
	if metrics.summaryFailures != 1 {
		t.Fatalf("expected one summary failure observation, got %d", metrics.summaryFailures)
	}
}

type panickingGenerator struct{}

func (panickingGenerator) GenerateFromPrompt(context.Context, string) (string, error) {
	panic("nil response")
}

func TestSummarizeRecoversPanic(t *testing.T) {
	summarizer := NewSummaryGenerator(panickingGenerator{}, nil)

	summary := summarizer.Summarize(context.Background(), &domain.ParsedInvoice{Fields: map[string]string{}})
	if !strings.Contains(summary, "nil response") {
		t.Fatalf("expected panic message in placeholder, got %q", summary)
	}
}
