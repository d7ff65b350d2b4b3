package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/api/option"

	"github.com/kirillkom/invoice-webapp/internal/config"
	"github.com/kirillkom/invoice-webapp/internal/core/ports"
	"github.com/kirillkom/invoice-webapp/internal/core/usecase"
	"github.com/kirillkom/invoice-webapp/internal/infrastructure/export"
	"github.com/kirillkom/invoice-webapp/internal/infrastructure/extractor/documentai"
	"github.com/kirillkom/invoice-webapp/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/invoice-webapp/internal/infrastructure/llm/vertex"
	"github.com/kirillkom/invoice-webapp/internal/infrastructure/pdfinspect"
	"github.com/kirillkom/invoice-webapp/internal/infrastructure/queue/nats"
	"github.com/kirillkom/invoice-webapp/internal/infrastructure/resilience"
	"github.com/kirillkom/invoice-webapp/internal/infrastructure/storage/gcs"
	"github.com/kirillkom/invoice-webapp/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/invoice-webapp/internal/infrastructure/warehouse/bigquery"
	"github.com/kirillkom/invoice-webapp/internal/infrastructure/warehouse/postgres"
	"github.com/kirillkom/invoice-webapp/internal/observability/metrics"
)

const ServiceName = "invoice-webapp"

type App struct {
	Config config.Config

	Uploader    ports.InvoiceUploader
	Reporter    ports.AdminReporter
	Exporter    ports.AdminExporter
	HTTPMetrics *metrics.HTTPServerMetrics

	closers []func()
}

// New builds every collaborator once; handlers share them across requests.
func New(ctx context.Context, cfg config.Config) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	clientOpts := googleClientOptions(cfg)
	httpMetrics := metrics.NewHTTPServerMetrics(ServiceName)
	pipelineMetrics := metrics.NewPipelineMetrics(ServiceName, httpMetrics.Registry())
	app.HTTPMetrics = httpMetrics

	store, err := app.blobStore(ctx, cfg, clientOpts)
	if err != nil {
		return nil, err
	}
	warehouse, err := app.warehouse(ctx, cfg, clientOpts)
	if err != nil {
		return nil, err
	}
	generator, err := app.textGenerator(ctx, cfg, clientOpts, pipelineMetrics)
	if err != nil {
		return nil, err
	}

	extractor, err := documentai.New(ctx, cfg.ProcessorLocation, cfg.ProcessorName(), clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("init document extractor: %w", err)
	}
	app.onClose(func() { _ = extractor.Close() })

	options := usecase.UploadOptions{
		Pages:   pdfinspect.NewCounter(),
		Metrics: pipelineMetrics,
	}
	if cfg.NATSURL != "" {
		publishPolicy := resilience.PublishPolicy()
		publishPolicy.OnBreakerStateChange = pipelineMetrics.ObserveBreakerTransition
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(publishPolicy),
		})
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		app.onClose(queue.Close)
		options.Events = queue
	}

	summarizer := usecase.NewSummaryGenerator(generator, pipelineMetrics)
	reporter := usecase.NewAdminReportUseCase(warehouse)

	app.Uploader = usecase.NewUploadInvoicesUseCase(
		usecase.UploadConfig{
			UploadPrefix: cfg.UploadPrefix,
			ParsedPrefix: cfg.ParsedPrefix,
			SignedURLTTL: cfg.SignedURLTTL,
		},
		store,
		extractor,
		summarizer,
		usecase.NewDuplicateChecker(warehouse),
		warehouse,
		options,
	)
	app.Reporter = reporter
	app.Exporter = usecase.NewExportAdminReportUseCase(reporter, export.NewXLSXRenderer())

	slog.Info("bootstrap_completed",
		"blob_backend", cfg.BlobBackend,
		"warehouse_backend", cfg.WarehouseBackend,
		"summary_backend", cfg.SummaryBackend,
		"events_enabled", options.Events != nil,
	)
	return app, nil
}

func (a *App) blobStore(ctx context.Context, cfg config.Config, opts []option.ClientOption) (ports.BlobStore, error) {
	switch cfg.BlobBackend {
	case "localfs":
		store, err := localfs.New(cfg.LocalBlobPath)
		if err != nil {
			return nil, fmt.Errorf("init local blob store: %w", err)
		}
		return store, nil
	case "gcs", "":
		store, err := gcs.New(ctx, cfg.BucketName, opts...)
		if err != nil {
			return nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		a.onClose(func() { _ = store.Close() })
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

func (a *App) warehouse(ctx context.Context, cfg config.Config, opts []option.ClientOption) (ports.Warehouse, error) {
	switch cfg.WarehouseBackend {
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.onClose(func() { _ = db.Close() })
		warehouse := postgres.NewWarehouse(db)
		if err := warehouse.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return warehouse, nil
	case "bigquery", "":
		warehouse, err := bigquery.New(ctx, cfg.ProjectID, cfg.Dataset, cfg.Table, opts...)
		if err != nil {
			return nil, fmt.Errorf("init bigquery warehouse: %w", err)
		}
		a.onClose(func() { _ = warehouse.Close() })
		return warehouse, nil
	default:
		return nil, fmt.Errorf("unknown warehouse backend %q", cfg.WarehouseBackend)
	}
}

func (a *App) textGenerator(ctx context.Context, cfg config.Config, opts []option.ClientOption, pipelineMetrics *metrics.PipelineMetrics) (ports.TextGenerator, error) {
	var generator ports.TextGenerator
	switch cfg.SummaryBackend {
	case "ollama":
		generator = ollama.NewGenerator(ollama.New(cfg.OllamaURL, cfg.OllamaGenModel))
	case "vertex", "":
		vertexGen, err := vertex.New(ctx, cfg.ProjectID, cfg.GenerativeLocation, cfg.GenerativeModel, opts...)
		if err != nil {
			return nil, fmt.Errorf("init vertex generator: %w", err)
		}
		a.onClose(func() { _ = vertexGen.Close() })
		generator = vertexGen
	default:
		return nil, fmt.Errorf("unknown summary backend %q", cfg.SummaryBackend)
	}

	policy := summaryPolicy(cfg)
	policy.OnBreakerStateChange = pipelineMetrics.ObserveBreakerTransition
	return resilience.NewGuardedGenerator(generator, resilience.NewExecutor(policy), "summary.generate"), nil
}

// summaryPolicy is opt-in beyond a single attempt: retries and the breaker
// only apply when configured.
func summaryPolicy(cfg config.Config) resilience.Config {
	return resilience.SummaryPolicy(cfg.SummaryRetryMax, cfg.SummaryBreakerOn, cfg.SummaryBreakerMinReq)
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases clients in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// googleClientOptions uses the configured key file when present and falls
// back to application default credentials otherwise.
func googleClientOptions(cfg config.Config) []option.ClientOption {
	if cfg.CredentialsFile == "" {
		return nil
	}
	if _, err := os.Stat(cfg.CredentialsFile); err != nil {
		slog.Warn("credentials_file_unavailable", "path", cfg.CredentialsFile, "error", err)
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
}
