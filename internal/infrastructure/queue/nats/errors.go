package nats

import (
	"context"
	"errors"

	"github.com/kirillkom/assessment-recommender/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// transientErrors are connection-level failures that a reconnect can cure.
var transientErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionDraining,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
	nats.ErrStaleConnection,
}

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isTransient(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		// Bad subject, oversized payload and similar caller mistakes.
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func isTransient(err error) bool {
	for _, target := range transientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// wrapTemporaryIfNeeded lets the ingest command report a broker outage as
// temporary after the catalog itself has already been saved.
func wrapTemporaryIfNeeded(err error) error {
	return resilience.WrapTemporary("publish catalog event", err, classifyNATSError)
}
