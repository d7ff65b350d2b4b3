package domain

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Well-known ParsedInvoice field keys as produced by the extraction processor.
const (
	FieldInvoiceID    = "invoice_id"
	FieldSupplierName = "supplier_name"
	FieldReceiverName = "receiver_name"
	FieldTotalAmount  = "total_amount"
	FieldCurrency     = "currency"
	FieldDueDate      = "due_date"
	FieldPaymentTerms = "payment_terms"
	FieldCarrier      = "carrier"
)

// Keys of the derived values that are flattened next to the extracted fields.
const (
	KeyDocumentConfidence = "document_confidence"
	KeySummary            = "summary"
	KeyGCSURI             = "gcs_uri"
	KeyViewURL            = "view_url"
)

// Entity is one typed text span returned by the extraction service.
type Entity struct {
	Type        string
	MentionText string
	Confidence  *float64
}

type ExtractedDocument struct {
	Entities []Entity
}

// UploadFile is one multipart file payload.
type UploadFile struct {
	Filename string
	Content  []byte
}

// ParsedInvoice is the flattened result for one uploaded file.
type ParsedInvoice struct {
	Filename           string            `json:"-"`
	Fields             map[string]string `json:"-"`
	DocumentConfidence float64           `json:"-"`
	Summary            string            `json:"-"`
	GCSURI             string            `json:"-"`
	ViewURL            string            `json:"-"`
}

func (p *ParsedInvoice) Get(key string) string {
	if p == nil || p.Fields == nil {
		return ""
	}
	return p.Fields[key]
}

func (p *ParsedInvoice) InvoiceID() string    { return p.Get(FieldInvoiceID) }
func (p *ParsedInvoice) SupplierName() string { return p.Get(FieldSupplierName) }

// SortedFieldKeys returns extracted field keys in lexical order for stable rendering.
func (p *ParsedInvoice) SortedFieldKeys() []string {
	keys := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Row flattens the invoice into a single mapping. Derived values win over
// extracted fields that happen to share a key.
func (p *ParsedInvoice) Row() map[string]any {
	row := make(map[string]any, len(p.Fields)+4)
	for k, v := range p.Fields {
		row[k] = v
	}
	row[KeyDocumentConfidence] = p.DocumentConfidence
	row[KeySummary] = p.Summary
	row[KeyGCSURI] = p.GCSURI
	row[KeyViewURL] = p.ViewURL
	return row
}

func (p *ParsedInvoice) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Row())
}

// TotalAmountValue parses total_amount leniently; ok is false when the text is not numeric.
func (p *ParsedInvoice) TotalAmountValue() (float64, bool) {
	raw := strings.TrimSpace(strings.ReplaceAll(p.Get(FieldTotalAmount), ",", ""))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DuplicateMatch is one warehouse row sharing invoice_id and supplier_name.
type DuplicateMatch map[string]any

func (m DuplicateMatch) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BatchResult is the outcome of an upload batch. Duplicate is set when the
// batch stopped early on a conflicting invoice.
type BatchResult struct {
	Invoices  []*ParsedInvoice
	Duplicate *DuplicateConflict
}

type DuplicateConflict struct {
	Invoice *ParsedInvoice
	Matches []DuplicateMatch
}
