package resilience

import (
	"context"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
	"github.com/kirillkom/invoice-webapp/internal/core/ports"
)

// GuardedGenerator runs a text generator through the executor.
type GuardedGenerator struct {
	next      ports.TextGenerator
	executor  *Executor
	operation string
}

func NewGuardedGenerator(next ports.TextGenerator, executor *Executor, operation string) *GuardedGenerator {
	if operation == "" {
		operation = "summary.generate"
	}
	return &GuardedGenerator{next: next, executor: executor, operation: operation}
}

func (g *GuardedGenerator) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	text, err := Do(ctx, g.executor, g.operation, func(callCtx context.Context) (string, error) {
		return g.next.GenerateFromPrompt(callCtx, prompt)
	}, ClassifyTransient)
	if err != nil {
		if ClassifyTransient(err).Retryable || IsCircuitOpen(err) {
			return "", domain.WrapError(domain.ErrTemporary, g.operation, err)
		}
		return "", err
	}
	return text, nil
}
