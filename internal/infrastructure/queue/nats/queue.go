package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
	"github.com/kirillkom/invoice-webapp/internal/infrastructure/resilience"
)

// InvoiceStoredEvent is published once an invoice row reaches the warehouse.
type InvoiceStoredEvent struct {
	EventID            string    `json:"event_id"`
	Filename           string    `json:"filename"`
	InvoiceID          string    `json:"invoice_id"`
	SupplierName       string    `json:"supplier_name"`
	TotalAmount        string    `json:"total_amount,omitempty"`
	Currency           string    `json:"currency,omitempty"`
	DocumentConfidence float64   `json:"document_confidence"`
	GCSURI             string    `json:"gcs_uri"`
	StoredAt           time.Time `json:"stored_at"`
}

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	now      func() time.Time
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

// Options tunes the connection. Zero values use the defaults below.
type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func (o Options) natsOptions() []nats.Option {
	retryOnFailedConnect := true
	if o.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *o.RetryOnFailedConnect
	}
	return []nats.Option{
		nats.Name("invoice-webapp"),
		nats.Timeout(durationOr(o.ConnectTimeout, 2*time.Second)),
		nats.ReconnectWait(durationOr(o.ReconnectWait, 2*time.Second)),
		nats.MaxReconnects(intOr(o.MaxReconnects, 60)),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	}
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	conn, err := nats.Connect(url, options.natsOptions()...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		now:      time.Now,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishInvoiceStored(ctx context.Context, invoice *domain.ParsedInvoice) error {
	msg, err := q.invoiceStoredMsg(newInvoiceStoredEvent(invoice, q.now()))
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeInvoiceStored blocks until ctx is done, then drains the subscription.
func (q *Queue) SubscribeInvoiceStored(ctx context.Context, group string, handler func(context.Context, InvoiceStoredEvent) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, group, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var event InvoiceStoredEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			slog.Warn("invoice_event_decode_failed", "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			slog.Error("invoice_event_handler_failed", "event_id", event.EventID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// invoiceStoredMsg sets Nats-Msg-Id so a stream-backed subject drops retried duplicates.
func (q *Queue) invoiceStoredMsg(event InvoiceStoredEvent) (*nats.Msg, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal invoice event: %w", err)
	}
	msg := nats.NewMsg(q.subject)
	msg.Data = payload
	msg.Header.Set(nats.MsgIdHdr, event.EventID)
	msg.Header.Set("Content-Type", "application/json")
	return msg, nil
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}

func intOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func newInvoiceStoredEvent(invoice *domain.ParsedInvoice, now time.Time) InvoiceStoredEvent {
	return InvoiceStoredEvent{
		EventID:            uuid.NewString(),
		Filename:           invoice.Filename,
		InvoiceID:          invoice.InvoiceID(),
		SupplierName:       invoice.SupplierName(),
		TotalAmount:        invoice.Get(domain.FieldTotalAmount),
		Currency:           invoice.Get(domain.FieldCurrency),
		DocumentConfidence: invoice.DocumentConfidence,
		GCSURI:             invoice.GCSURI,
		StoredAt:           now.UTC(),
	}
}
