package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
	"github.com/kirillkom/invoice-webapp/internal/infrastructure/resilience"
)

var (
	// Connection churn: worth another attempt once the client reconnects.
	transientNATSErrors = []error{
		nats.ErrNoServers,
		nats.ErrTimeout,
		nats.ErrConnectionClosed,
		nats.ErrDisconnected,
		nats.ErrConnectionReconnecting,
	}
	// Caller mistakes: retrying cannot help and the broker is healthy.
	rejectedNATSErrors = []error{
		nats.ErrBadSubject,
		nats.ErrMaxPayload,
		nats.ErrInvalidMsg,
	}
)

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case matchesAny(err, rejectedNATSErrors):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case matchesAny(err, transientNATSErrors):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ClassifyTransient(err)
	}
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// wrapTemporaryIfNeeded tags publish failures the caller may retry later.
func wrapTemporaryIfNeeded(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "nats publish", err)
	}
	return err
}
