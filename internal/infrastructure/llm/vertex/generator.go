package vertex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
)

var errNoCandidates = errors.New("vertex response has no text candidates")

// Generator produces text with a Gemini model on Vertex AI.
type Generator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func New(ctx context.Context, project, location, modelName string, opts ...option.ClientOption) (*Generator, error) {
	client, err := genai.NewClient(ctx, project, location, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vertex client: %w", err)
	}
	return &Generator{client: client, model: client.GenerativeModel(modelName)}, nil
}

func (g *Generator) Close() error {
	return g.client.Close()
}

func (g *Generator) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("vertex generate: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errNoCandidates
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", errNoCandidates
	}
	return strings.TrimSpace(b.String()), nil
}
