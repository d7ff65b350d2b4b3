package documentai

import (
	"context"
	"fmt"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
)

// Extractor runs PDFs through a Document AI invoice processor.
type Extractor struct {
	client    *documentai.DocumentProcessorClient
	processor string
}

// New connects to the regional endpoint that hosts the processor.
func New(ctx context.Context, location, processorName string, opts ...option.ClientOption) (*Extractor, error) {
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)
	opts = append([]option.ClientOption{option.WithEndpoint(endpoint)}, opts...)

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create document ai client: %w", err)
	}
	return &Extractor{client: client, processor: processorName}, nil
}

func (e *Extractor) Close() error {
	return e.client.Close()
}

func (e *Extractor) Process(ctx context.Context, content []byte, mimeType string) (*domain.ExtractedDocument, error) {
	resp, err := e.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: e.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: mimeType,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("process document: %w", err)
	}
	return toExtractedDocument(resp.GetDocument()), nil
}

func toExtractedDocument(doc *documentaipb.Document) *domain.ExtractedDocument {
	entities := doc.GetEntities()
	out := &domain.ExtractedDocument{Entities: make([]domain.Entity, 0, len(entities))}
	for _, entity := range entities {
		confidence := float64(entity.GetConfidence())
		out.Entities = append(out.Entities, domain.Entity{
			Type:        entity.GetType(),
			MentionText: entity.GetMentionText(),
			Confidence:  &confidence,
		})
	}
	return out
}
