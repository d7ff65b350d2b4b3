package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/invoice-webapp/internal/bootstrap"
	"github.com/kirillkom/invoice-webapp/internal/config"
	"github.com/kirillkom/invoice-webapp/internal/infrastructure/queue/nats"
	"github.com/kirillkom/invoice-webapp/internal/observability/logging"
)

// The worker records an audit line for every invoice that reached the warehouse.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(bootstrap.ServiceName+"-worker", cfg.LogLevel))

	if cfg.NATSURL == "" {
		slog.Error("worker_requires_nats_url")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		slog.Error("worker_connect_failed", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = queue.SubscribeInvoiceStored(ctx, "invoice-audit", func(_ context.Context, event nats.InvoiceStoredEvent) error {
		slog.Info("invoice_stored",
			"event_id", event.EventID,
			"filename", event.Filename,
			"invoice_id", event.InvoiceID,
			"supplier_name", event.SupplierName,
			"total_amount", event.TotalAmount,
			"currency", event.Currency,
			"document_confidence", event.DocumentConfidence,
			"gcs_uri", event.GCSURI,
			"stored_at", event.StoredAt,
		)
		return nil
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
