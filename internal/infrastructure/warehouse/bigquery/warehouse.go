package bigquery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
)

// Warehouse reads and appends invoice rows in a BigQuery table.
type Warehouse struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
}

func New(ctx context.Context, project, dataset, table string, opts ...option.ClientOption) (*Warehouse, error) {
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	return &Warehouse{client: client, project: project, dataset: dataset, table: table}, nil
}

func (w *Warehouse) Close() error {
	return w.client.Close()
}

func (w *Warehouse) tableRef() string {
	return qualifiedTable(w.project, w.dataset, w.table)
}

func (w *Warehouse) FindDuplicates(ctx context.Context, invoiceID, supplierName string) ([]domain.DuplicateMatch, error) {
	q := w.client.Query(duplicateQuery(w.tableRef()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "invoice_id", Value: invoiceID},
		{Name: "supplier_name", Value: supplierName},
	}

	rows, err := readRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query duplicates: %w", err)
	}
	matches := make([]domain.DuplicateMatch, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, matchFromRow(row))
	}
	return matches, nil
}

func (w *Warehouse) Insert(ctx context.Context, invoice *domain.ParsedInvoice) error {
	inserter := w.client.Dataset(w.dataset).Table(w.table).Inserter()
	if err := inserter.Put(ctx, invoiceRow{invoice: invoice}); err != nil {
		return insertError(err)
	}
	return nil
}

// insertError surfaces the first row failure text and keeps the Put error chain.
func insertError(err error) error {
	var multi bigquery.PutMultiError
	if errors.As(err, &multi) && len(multi) > 0 {
		return fmt.Errorf("insert invoice row: %s: %w", multi[0].Error(), err)
	}
	return fmt.Errorf("insert invoice row: %w", err)
}

func (w *Warehouse) CountInvoices(ctx context.Context) (int64, error) {
	rows, err := readRows(ctx, w.client.Query(countQuery(w.tableRef())))
	if err != nil {
		return 0, fmt.Errorf("count invoices: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return int64Value(rows[0]["count"]), nil
}

func (w *Warehouse) VendorTotals(ctx context.Context) ([]domain.VendorTotal, error) {
	rows, err := readRows(ctx, w.client.Query(vendorQuery(w.tableRef())))
	if err != nil {
		return nil, fmt.Errorf("query vendor totals: %w", err)
	}
	totals := make([]domain.VendorTotal, 0, len(rows))
	for _, row := range rows {
		totals = append(totals, vendorFromRow(row))
	}
	return totals, nil
}

func readRows(ctx context.Context, q *bigquery.Query) ([]map[string]bigquery.Value, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	var rows []map[string]bigquery.Value
	for {
		row := map[string]bigquery.Value{}
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func qualifiedTable(project, dataset, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", project, dataset, table)
}

func duplicateQuery(table string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE invoice_id = @invoice_id AND supplier_name = @supplier_name", table)
}

func countQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) AS count FROM %s", table)
}

func vendorQuery(table string) string {
	return fmt.Sprintf(
		"SELECT supplier_name AS vendor, COUNT(*) AS count, SUM(SAFE_CAST(total_amount AS FLOAT64)) AS amount FROM %s GROUP BY vendor",
		table,
	)
}

func matchFromRow(row map[string]bigquery.Value) domain.DuplicateMatch {
	match := make(domain.DuplicateMatch, len(row))
	for k, v := range row {
		match[k] = v
	}
	return match
}

func vendorFromRow(row map[string]bigquery.Value) domain.VendorTotal {
	vendor, _ := row["vendor"].(string)
	return domain.VendorTotal{
		Vendor: vendor,
		Count:  int64Value(row["count"]),
		Amount: float64Value(row["amount"]),
	}
}

func int64Value(v bigquery.Value) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// float64Value maps NULL sums to zero.
func float64Value(v bigquery.Value) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// invoiceRow saves the flat invoice record. The insert ID lets streaming
// dedupe retried inserts of the same invoice.
type invoiceRow struct {
	invoice *domain.ParsedInvoice
}

func (r invoiceRow) Save() (map[string]bigquery.Value, string, error) {
	flat := r.invoice.Row()
	row := make(map[string]bigquery.Value, len(flat))
	for k, v := range flat {
		row[k] = v
	}
	return row, insertID(r.invoice), nil
}

func insertID(invoice *domain.ParsedInvoice) string {
	id, supplier := invoice.InvoiceID(), invoice.SupplierName()
	if id == "" || supplier == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id + "|" + supplier))
	return hex.EncodeToString(sum[:16])
}
