package httpadapter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/invoice-webapp/internal/config"
	"github.com/kirillkom/invoice-webapp/internal/core/domain"
	"github.com/kirillkom/invoice-webapp/internal/core/usecase"
	"github.com/kirillkom/invoice-webapp/internal/observability/metrics"
)

type uploaderFake struct {
	result *domain.BatchResult
	err    error
	panics bool
	files  []domain.UploadFile
}

func (f *uploaderFake) ProcessBatch(_ context.Context, files []domain.UploadFile) (*domain.BatchResult, error) {
	f.files = files
	if f.panics {
		panic("extraction client exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type reporterFake struct {
	report *domain.AdminReport
	err    error
}

func (f reporterFake) Report(context.Context) (*domain.AdminReport, error) {
	return f.report, f.err
}

type exporterFake struct {
	payload []byte
	err     error
}

func (f exporterFake) ExportXLSX(context.Context) ([]byte, error) {
	return f.payload, f.err
}

func newRouterHandler(cfg config.Config, uploader *uploaderFake, reporter reporterFake, exporter exporterFake) http.Handler {
	return NewRouter(cfg, uploader, reporter, exporter, metrics.NewHTTPServerMetrics(serviceName)).Handler()
}

func multipartUpload(t *testing.T, names ...string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range names {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = io.WriteString(part, "%PDF-1.4 "+name)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func parsedInvoice(filename, id string) *domain.ParsedInvoice {
	return &domain.ParsedInvoice{
		Filename:           filename,
		Fields:             map[string]string{"invoice_id": id, "supplier_name": "ACME"},
		DocumentConfidence: 0.8,
		Summary:            "Invoice " + id + " from ACME.",
		GCSURI:             "gs://ltl_invoice/invoices/" + filename,
		ViewURL:            "https://signed.example/" + filename,
	}
}

func TestIndexRendersUploadForm(t *testing.T) {
	handler := newRouterHandler(config.Config{}, &uploaderFake{}, reporterFake{}, exporterFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Upload PDF Invoices") {
		t.Fatalf("expected upload form, got %s", res.Body.String())
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestUploadRendersParsedResults(t *testing.T) {
	uploader := &uploaderFake{result: &domain.BatchResult{Invoices: []*domain.ParsedInvoice{parsedInvoice("test.pdf", "123")}}}
	handler := newRouterHandler(config.Config{}, uploader, reporterFake{}, exporterFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartUpload(t, "test.pdf"))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, "Parsed Results") || !strings.Contains(body, "123") {
		t.Fatalf("unexpected body %s", body)
	}
	if len(uploader.files) != 1 || uploader.files[0].Filename != "test.pdf" || !strings.HasPrefix(string(uploader.files[0].Content), "%PDF") {
		t.Fatalf("unexpected files passed to uploader: %+v", uploader.files)
	}
}

func TestUploadPassesFilesInFormOrder(t *testing.T) {
	uploader := &uploaderFake{result: &domain.BatchResult{Invoices: []*domain.ParsedInvoice{
		parsedInvoice("a.pdf", "1"),
		parsedInvoice("b.pdf", "2"),
	}}}
	handler := newRouterHandler(config.Config{}, uploader, reporterFake{}, exporterFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartUpload(t, "a.pdf", "b.pdf"))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(uploader.files) != 2 || uploader.files[0].Filename != "a.pdf" || uploader.files[1].Filename != "b.pdf" {
		t.Fatalf("unexpected file order %+v", uploader.files)
	}
	if strings.Count(res.Body.String(), "Invoice") < 2 {
		t.Fatalf("expected both invoices rendered")
	}
}

func TestUploadWithoutFilesRendersErrorWith200(t *testing.T) {
	uploader := &uploaderFake{err: domain.WrapError(domain.ErrInvalidInput, "process batch", usecase.ErrNoFiles)}
	handler := newRouterHandler(config.Config{}, uploader, reporterFake{}, exporterFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartUpload(t))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "No PDF files provided.") {
		t.Fatalf("expected no-files message, got %s", res.Body.String())
	}
	if len(uploader.files) != 0 {
		t.Fatalf("expected no files, got %d", len(uploader.files))
	}
}

func TestUploadNonMultipartIsTreatedAsEmpty(t *testing.T) {
	uploader := &uploaderFake{err: domain.WrapError(domain.ErrInvalidInput, "process batch", usecase.ErrNoFiles)}
	handler := newRouterHandler(config.Config{}, uploader, reporterFake{}, exporterFake{})

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "No PDF files provided.") {
		t.Fatalf("expected no-files page, got %d %s", res.Code, res.Body.String())
	}
}

func TestUploadRendersDuplicatePage(t *testing.T) {
	uploader := &uploaderFake{result: &domain.BatchResult{Duplicate: &domain.DuplicateConflict{
		Invoice: parsedInvoice("b.pdf", "2"),
		Matches: []domain.DuplicateMatch{{"invoice_id": "2", "supplier_name": "ACME", "gcs_uri": "gs://old"}},
	}}}
	handler := newRouterHandler(config.Config{}, uploader, reporterFake{}, exporterFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartUpload(t, "b.pdf"))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, "Duplicate Detected") || !strings.Contains(body, "gs://old") {
		t.Fatalf("unexpected duplicate page %s", body)
	}
}

func TestUploadFaultRenders500WithMessage(t *testing.T) {
	uploader := &uploaderFake{err: errors.New("extract document: processor not found")}
	handler := newRouterHandler(config.Config{}, uploader, reporterFake{}, exporterFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartUpload(t, "a.pdf"))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "processor not found") {
		t.Fatalf("expected raw fault message, got %s", res.Body.String())
	}
}

func TestUploadPanicIsRecoveredInto500(t *testing.T) {
	handler := newRouterHandler(config.Config{}, &uploaderFake{panics: true}, reporterFake{}, exporterFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartUpload(t, "a.pdf"))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "extraction client exploded") {
		t.Fatalf("expected panic message, got %s", res.Body.String())
	}
}

func TestAdminRendersTotals(t *testing.T) {
	reporter := reporterFake{report: &domain.AdminReport{
		TotalCount: 3,
		Vendors:    []domain.VendorTotal{{Vendor: "A", Count: 2, Amount: 10.0}},
	}}
	handler := newRouterHandler(config.Config{}, &uploaderFake{}, reporter, exporterFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := res.Body.String()
	for _, want := range []string{"Admin Statistics", "Total Invoices Parsed: 3", "<td>A</td>", "<td>2</td>", "10.00"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in admin page, got %s", want, body)
		}
	}
}

func TestAdminFaultRenders500(t *testing.T) {
	handler := newRouterHandler(config.Config{}, &uploaderFake{}, reporterFake{err: errors.New("table not found")}, exporterFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if res.Code != http.StatusInternalServerError || !strings.Contains(res.Body.String(), "table not found") {
		t.Fatalf("expected 500 error page, got %d %s", res.Code, res.Body.String())
	}
}

func TestAdminExportServesWorkbook(t *testing.T) {
	handler := newRouterHandler(config.Config{}, &uploaderFake{}, reporterFake{}, exporterFake{payload: []byte("PK")})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/admin/export.xlsx", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), ".xlsx") || res.Body.String() != "PK" {
		t.Fatalf("unexpected export response %v %q", res.Header(), res.Body.String())
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	handler := newRouterHandler(config.Config{}, &uploaderFake{}, reporterFake{}, exporterFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"ok"`) {
		t.Fatalf("unexpected healthz response %d %s", res.Code, res.Body.String())
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "invoice_http_requests_total") {
		t.Fatalf("expected prometheus exposition, got %d", res.Code)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	handler := newRouterHandler(config.Config{}, &uploaderFake{}, reporterFake{}, exporterFake{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if got := res.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("expected propagated request id, got %q", got)
	}
}
