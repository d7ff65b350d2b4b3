package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/kirillkom/invoice-webapp/internal/config"
	"github.com/kirillkom/invoice-webapp/internal/core/domain"
	"github.com/kirillkom/invoice-webapp/internal/core/ports"
	"github.com/kirillkom/invoice-webapp/internal/observability/metrics"
)

const serviceName = "invoice-webapp"

type Router struct {
	cfg      config.Config
	uploader ports.InvoiceUploader
	reporter ports.AdminReporter
	exporter ports.AdminExporter
	metrics  *metrics.HTTPServerMetrics
	pages    *pages
}

func NewRouter(
	cfg config.Config,
	uploader ports.InvoiceUploader,
	reporter ports.AdminReporter,
	exporter ports.AdminExporter,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		uploader: uploader,
		reporter: reporter,
		exporter: exporter,
		metrics:  httpMetrics,
		pages:    loadPages(),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.index)
	mux.Handle("POST /upload", rt.uploadGate(http.HandlerFunc(rt.upload)))
	mux.HandleFunc("GET /admin", rt.admin)
	mux.HandleFunc("GET /admin/export.xlsx", rt.exportXLSX)
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = recoverMiddleware(rt.pages, handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

// uploadGate applies the optional rate limit and concurrency gate to uploads only.
func (rt *Router) uploadGate(next http.Handler) http.Handler {
	handler := next
	if rt.cfg.APIBackpressureMaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIBackpressureMaxInFlight, rt.cfg.APIBackpressureWait)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.onRateLimited)
	}
	return handler
}

func (rt *Router) onRateLimited(r *http.Request) {
	if rt.metrics != nil {
		rt.metrics.RecordRateLimited(serviceName, r.URL.Path)
	}
}

func (rt *Router) index(w http.ResponseWriter, _ *http.Request) {
	rt.pages.render(w, http.StatusOK, "upload.html", nil)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) upload(w http.ResponseWriter, r *http.Request) {
	files, err := rt.readUploadFiles(w, r)
	if err != nil {
		slog.Error("upload_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		rt.pages.renderError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := rt.uploader.ProcessBatch(r.Context(), files)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("upload_failed",
				"request_id", requestIDFromContext(r.Context()),
				"files", len(files),
				"kind", domain.KindName(err),
				"error", err,
			)
		}
		rt.pages.renderError(w, status, errorMessage(err))
		return
	}

	if result.Duplicate != nil {
		rt.pages.render(w, http.StatusOK, "duplicate.html", result.Duplicate)
		return
	}
	rt.pages.render(w, http.StatusOK, "result.html", result)
}

// readUploadFiles returns the "files" parts in form order. A request without
// multipart content yields no files so the use case can report it.
func (rt *Router) readUploadFiles(w http.ResponseWriter, r *http.Request) ([]domain.UploadFile, error) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["files"]
	files := make([]domain.UploadFile, 0, len(headers))
	for _, header := range headers {
		content, err := readPart(header)
		if err != nil {
			return nil, err
		}
		files = append(files, domain.UploadFile{Filename: header.Filename, Content: content})
	}
	return files, nil
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", header.Filename, err)
	}
	return content, nil
}

func (rt *Router) admin(w http.ResponseWriter, r *http.Request) {
	report, err := rt.reporter.Report(r.Context())
	if err != nil {
		slog.Error("admin_report_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		rt.pages.renderError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("admin_report_served", "total", report.TotalCount, "vendors", len(report.Vendors))
	rt.pages.render(w, http.StatusOK, "admin.html", report)
}

func (rt *Router) exportXLSX(w http.ResponseWriter, r *http.Request) {
	payload, err := rt.exporter.ExportXLSX(r.Context())
	if err != nil {
		slog.Error("admin_export_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		rt.pages.renderError(w, http.StatusInternalServerError, err.Error())
		return
	}
	filename := fmt.Sprintf("invoices-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
