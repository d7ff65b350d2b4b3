package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
)

// Warehouse is the self-hosted alternative to the BigQuery table.
type Warehouse struct {
	db  *sql.DB
	now func() time.Time
}

func NewWarehouse(db *sql.DB) *Warehouse {
	return &Warehouse{db: db, now: time.Now}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (w *Warehouse) EnsureSchema(ctx context.Context) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2025061501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS invoices (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	invoice_id TEXT NOT NULL DEFAULT '',
	supplier_name TEXT NOT NULL DEFAULT '',
	total_amount TEXT,
	fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	document_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	summary TEXT NOT NULL DEFAULT '',
	gcs_uri TEXT NOT NULL DEFAULT '',
	view_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_identity
	ON invoices(invoice_id, supplier_name)
	WHERE invoice_id <> '' AND supplier_name <> '';
CREATE INDEX IF NOT EXISTS idx_invoices_supplier ON invoices(supplier_name);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (w *Warehouse) FindDuplicates(ctx context.Context, invoiceID, supplierName string) ([]domain.DuplicateMatch, error) {
	rows, err := w.db.QueryContext(ctx, `
SELECT fields, document_confidence, summary, gcs_uri, view_url
FROM invoices
WHERE invoice_id = $1 AND supplier_name = $2
ORDER BY created_at
`, invoiceID, supplierName)
	if err != nil {
		return nil, fmt.Errorf("query duplicates: %w", err)
	}
	defer rows.Close()

	var matches []domain.DuplicateMatch
	for rows.Next() {
		var (
			fieldsRaw  []byte
			confidence float64
			summary    string
			gcsURI     string
			viewURL    string
		)
		if err := rows.Scan(&fieldsRaw, &confidence, &summary, &gcsURI, &viewURL); err != nil {
			return nil, fmt.Errorf("scan duplicate row: %w", err)
		}
		match := domain.DuplicateMatch{}
		if len(fieldsRaw) > 0 {
			if err := json.Unmarshal(fieldsRaw, &match); err != nil {
				return nil, fmt.Errorf("unmarshal duplicate fields: %w", err)
			}
		}
		match[domain.KeyDocumentConfidence] = confidence
		match[domain.KeySummary] = summary
		match[domain.KeyGCSURI] = gcsURI
		match[domain.KeyViewURL] = viewURL
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate rows: %w", err)
	}
	return matches, nil
}

// Insert reports ErrDuplicateInvoice when the identity index already holds the pair.
func (w *Warehouse) Insert(ctx context.Context, invoice *domain.ParsedInvoice) error {
	fieldsJSON, err := json.Marshal(invoice.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	var totalAmount sql.NullString
	if v, ok := invoice.Fields[domain.FieldTotalAmount]; ok {
		totalAmount = sql.NullString{String: v, Valid: true}
	}

	res, err := w.db.ExecContext(ctx, `
INSERT INTO invoices (
	id, filename, invoice_id, supplier_name, total_amount, fields, document_confidence, summary, gcs_uri, view_url, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT DO NOTHING
`,
		uuid.NewString(), invoice.Filename, invoice.InvoiceID(), invoice.SupplierName(), totalAmount, fieldsJSON,
		invoice.DocumentConfidence, invoice.Summary, invoice.GCSURI, invoice.ViewURL, w.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert invoice rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDuplicateInvoice, "insert invoice", fmt.Errorf("%s from %s already stored", invoice.InvoiceID(), invoice.SupplierName()))
	}
	return nil
}

func (w *Warehouse) CountInvoices(ctx context.Context) (int64, error) {
	var count int64
	if err := w.db.QueryRowContext(ctx, `SELECT COUNT(*) AS count FROM invoices`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count invoices: %w", err)
	}
	return count, nil
}

// VendorTotals sums amounts that parse as numbers after dropping thousands separators.
func (w *Warehouse) VendorTotals(ctx context.Context) ([]domain.VendorTotal, error) {
	rows, err := w.db.QueryContext(ctx, `
SELECT supplier_name AS vendor,
	COUNT(*) AS count,
	COALESCE(SUM(
		CASE WHEN replace(total_amount, ',', '') ~ '^\s*-?[0-9]+(\.[0-9]+)?\s*$'
			THEN replace(total_amount, ',', '')::double precision
		END
	), 0) AS amount
FROM invoices
GROUP BY supplier_name
ORDER BY supplier_name
`)
	if err != nil {
		return nil, fmt.Errorf("query vendor totals: %w", err)
	}
	defer rows.Close()

	totals := make([]domain.VendorTotal, 0)
	for rows.Next() {
		var total domain.VendorTotal
		if err := rows.Scan(&total.Vendor, &total.Count, &total.Amount); err != nil {
			return nil, fmt.Errorf("scan vendor total: %w", err)
		}
		totals = append(totals, total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendor totals: %w", err)
	}
	return totals, nil
}
