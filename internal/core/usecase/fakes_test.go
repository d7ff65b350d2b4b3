package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
)

type putCall struct {
	key         string
	contentType string
	body        string
}

type blobStoreFake struct {
	objects map[string][]byte
	puts    []putCall
	gets    []string
	putErr  error
	signErr error
}

func newBlobStoreFake() *blobStoreFake {
	return &blobStoreFake{objects: map[string][]byte{}}
}

func (f *blobStoreFake) Put(_ context.Context, key, contentType string, data []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts = append(f.puts, putCall{key: key, contentType: contentType, body: string(data)})
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *blobStoreFake) Get(_ context.Context, key string) ([]byte, error) {
	f.gets = append(f.gets, key)
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (f *blobStoreFake) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return fmt.Sprintf("https://signed.example/%s?ttl=%s", key, ttl), nil
}

func (f *blobStoreFake) URI(key string) string {
	return "gs://bucket/" + key
}

type extractorFake struct {
	docs     []*domain.ExtractedDocument
	err      error
	contents []string
}

func (f *extractorFake) Process(_ context.Context, content []byte, _ string) (*domain.ExtractedDocument, error) {
	f.contents = append(f.contents, string(content))
	if f.err != nil {
		return nil, f.err
	}
	if len(f.docs) == 0 {
		return &domain.ExtractedDocument{}, nil
	}
	idx := len(f.contents) - 1
	if idx >= len(f.docs) {
		idx = len(f.docs) - 1
	}
	return f.docs[idx], nil
}

type warehouseFake struct {
	duplicates map[string][]domain.DuplicateMatch
	findErr    error
	insertErr  error
	inserted   []*domain.ParsedInvoice
	queries    int
	total      int64
	vendors    []domain.VendorTotal
	countErr   error
	vendorsErr error
}

func (f *warehouseFake) FindDuplicates(_ context.Context, invoiceID, supplierName string) ([]domain.DuplicateMatch, error) {
	f.queries++
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.duplicates[invoiceID+"|"+supplierName], nil
}

func (f *warehouseFake) Insert(_ context.Context, invoice *domain.ParsedInvoice) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, invoice)
	return nil
}

func (f *warehouseFake) CountInvoices(context.Context) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.total, nil
}

func (f *warehouseFake) VendorTotals(context.Context) ([]domain.VendorTotal, error) {
	if f.vendorsErr != nil {
		return nil, f.vendorsErr
	}
	return f.vendors, nil
}

type generatorFake struct {
	text    string
	err     error
	prompts []string
}

func (f *generatorFake) GenerateFromPrompt(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type eventsFake struct {
	published []string
	err       error
}

func (f *eventsFake) PublishInvoiceStored(_ context.Context, invoice *domain.ParsedInvoice) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, invoice.Filename)
	return nil
}

type pagesFake struct {
	pages int
	err   error
}

func (f pagesFake) CountPages([]byte) (int, error) {
	return f.pages, f.err
}

type metricsFake struct {
	batches         []int
	outcomes        []string
	summaryFailures int
	pages           []int
}

func (m *metricsFake) ObserveBatch(files int) { m.batches = append(m.batches, files) }
func (m *metricsFake) ObserveInvoice(outcome string) { m.outcomes = append(m.outcomes, outcome) }
func (m *metricsFake) ObserveSummaryFailure() { m.summaryFailures++ }
func (m *metricsFake) ObservePages(pages int) { m.pages = append(m.pages, pages) }

func confidence(v float64) *float64 {
	return &v
}
