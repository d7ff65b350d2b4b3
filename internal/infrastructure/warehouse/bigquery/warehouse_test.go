package bigquery

import (
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/bigquery"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
)

func TestQueriesTargetQualifiedTable(t *testing.T) {
	table := qualifiedTable("sis-2025-hackathon", "invoice_data", "invoices")
	if table != "`sis-2025-hackathon.invoice_data.invoices`" {
		t.Fatalf("unexpected table ref %s", table)
	}
	dup := duplicateQuery(table)
	if !strings.Contains(dup, "invoice_id = @invoice_id") || !strings.Contains(dup, "supplier_name = @supplier_name") {
		t.Fatalf("duplicate query must be parameterized: %s", dup)
	}
	if got := countQuery(table); got != "SELECT COUNT(*) AS count FROM "+table {
		t.Fatalf("unexpected count query %s", got)
	}
	vendors := vendorQuery(table)
	if !strings.Contains(vendors, "SAFE_CAST(total_amount AS FLOAT64)") || !strings.HasSuffix(vendors, "GROUP BY vendor") {
		t.Fatalf("unexpected vendor query %s", vendors)
	}
}

func TestInvoiceRowSaveFlattensInvoice(t *testing.T) {
	invoice := &domain.ParsedInvoice{
		Fields:             map[string]string{"invoice_id": "INV-1", "supplier_name": "ACME"},
		DocumentConfidence: 0.9,
		Summary:            "s",
		GCSURI:             "gs://b/invoices/a.pdf",
		ViewURL:            "https://signed",
	}

	row, id, err := invoiceRow{invoice: invoice}.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if row["invoice_id"] != "INV-1" || row["document_confidence"] != 0.9 || row["gcs_uri"] != "gs://b/invoices/a.pdf" {
		t.Fatalf("unexpected row %v", row)
	}
	if len(id) != 32 {
		t.Fatalf("expected deterministic insert id, got %q", id)
	}
	_, again, _ := invoiceRow{invoice: invoice}.Save()
	if again != id {
		t.Fatalf("insert id must be stable")
	}
}

func TestInvoiceRowWithoutKeysLetsClientGenerateInsertID(t *testing.T) {
	_, id, err := invoiceRow{invoice: &domain.ParsedInvoice{Fields: map[string]string{"invoice_id": "1"}}}.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty insert id, got %q", id)
	}
}

func TestVendorFromRowHandlesNulls(t *testing.T) {
	got := vendorFromRow(map[string]bigquery.Value{"vendor": nil, "count": int64(2), "amount": nil})
	if got.Vendor != "" || got.Count != 2 || got.Amount != 0 {
		t.Fatalf("unexpected vendor total %+v", got)
	}
	got = vendorFromRow(map[string]bigquery.Value{"vendor": "ACME", "count": int64(1), "amount": 12.5})
	if got.Vendor != "ACME" || got.Amount != 12.5 {
		t.Fatalf("unexpected vendor total %+v", got)
	}
}

func TestMatchFromRowCopiesColumns(t *testing.T) {
	match := matchFromRow(map[string]bigquery.Value{"invoice_id": "1", "supplier_name": "A", "total_amount": "10"})
	if len(match) != 3 || match["total_amount"] != "10" {
		t.Fatalf("unexpected match %v", match)
	}
}

func TestInsertErrorKeepsRowFailureChain(t *testing.T) {
	cause := errors.New("no such field: carrier")
	putErr := bigquery.PutMultiError{{InsertID: "abc", RowIndex: 0, Errors: bigquery.MultiError{cause}}}

	err := insertError(putErr)
	var multi bigquery.PutMultiError
	if !errors.As(err, &multi) || len(multi) != 1 {
		t.Fatalf("expected PutMultiError in chain, got %v", err)
	}
	if !strings.Contains(err.Error(), "no such field: carrier") {
		t.Fatalf("expected row failure detail, got %q", err.Error())
	}

	plain := errors.New("table not found")
	if err := insertError(plain); !errors.Is(err, plain) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}
