package usecase

import (
	"math"
	"strings"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
)

const confidencePrecision = 10000

// NormalizeFields flattens extracted entities into a ParsedInvoice. A repeated
// entity type overwrites the earlier value.
func NormalizeFields(doc *domain.ExtractedDocument) *domain.ParsedInvoice {
	invoice := &domain.ParsedInvoice{Fields: map[string]string{}}
	if doc == nil {
		return invoice
	}

	var (
		sum   float64
		count int
	)
	for _, entity := range doc.Entities {
		key := strings.ToLower(strings.TrimSpace(entity.Type))
		value := strings.TrimSpace(strings.ReplaceAll(entity.MentionText, "\n", " "))
		invoice.Fields[key] = value
		if entity.Confidence != nil {
			sum += *entity.Confidence
			count++
		}
	}

	if count > 0 {
		invoice.DocumentConfidence = math.Round(sum/float64(count)*confidencePrecision) / confidencePrecision
	}
	return invoice
}
