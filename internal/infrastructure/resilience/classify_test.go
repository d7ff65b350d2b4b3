package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
)

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestClassifyTransient(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"canceled", context.Canceled, false, false},
		{"open circuit", gobreaker.ErrOpenState, true, true},
		{"http 503", fmt.Errorf("wrap: %w", statusErr(http.StatusServiceUnavailable)), true, true},
		{"http 400", statusErr(http.StatusBadRequest), false, false},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), true, true},
		{"grpc not found", status.Error(codes.NotFound, "no model"), false, false},
		{"plain", errors.New("boom"), false, true},
	}
	for _, tc := range cases {
		got := ClassifyTransient(tc.err)
		if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
			t.Fatalf("%s: got %+v", tc.name, got)
		}
	}
}

type generatorStub struct {
	calls int
	errs  []error
}

func (g *generatorStub) GenerateFromPrompt(context.Context, string) (string, error) {
	g.calls++
	if g.calls <= len(g.errs) {
		return "", g.errs[g.calls-1]
	}
	return "ok", nil
}

func TestGuardedGeneratorRetriesUnavailable(t *testing.T) {
	stub := &generatorStub{errs: []error{status.Error(codes.Unavailable, "busy")}}
	exec := NewExecutor(Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     2,
	})

	text, err := NewGuardedGenerator(stub, exec, "").GenerateFromPrompt(context.Background(), "p")
	if err != nil {
		t.Fatalf("GenerateFromPrompt() error = %v", err)
	}
	if text != "ok" || stub.calls != 2 {
		t.Fatalf("expected retry then success, got %q after %d calls", text, stub.calls)
	}
}

func TestGuardedGeneratorMarksTransientFailuresTemporary(t *testing.T) {
	stub := &generatorStub{errs: []error{status.Error(codes.ResourceExhausted, "quota")}}
	exec := NewExecutor(Config{RetryMaxAttempts: 1})

	_, err := NewGuardedGenerator(stub, exec, "summary.generate").GenerateFromPrompt(context.Background(), "p")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}

	stub = &generatorStub{errs: []error{errors.New("bad prompt")}}
	_, err = NewGuardedGenerator(stub, exec, "summary.other").GenerateFromPrompt(context.Background(), "p")
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}
