package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/resilience"
)

// classifyNATSError retries only requests that never reached a worker. A
// timed-out request may still be answered, so sending it again would
// duplicate the answer. A worker that replied with an error is not retried
// either; that error travels inside the reply.
func classifyNATSError(err error) resilience.ErrorClassification {
	if requestTimedOut(err) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
	return resilience.Classify(err, func(err error) bool {
		return errors.Is(err, nats.ErrNoServers) ||
			errors.Is(err, nats.ErrNoResponders) ||
			errors.Is(err, nats.ErrConnectionClosed)
	})
}

func requestTimedOut(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout)
}

// wrapTemporaryIfNeeded tags failures worth asking again later, including
// timeouts the executor declined to retry.
func wrapTemporaryIfNeeded(err error) error {
	if requestTimedOut(err) && !domain.IsKind(err, domain.ErrTemporary) {
		return domain.WrapError(domain.ErrTemporary, "nats request", err)
	}
	return resilience.WrapTemporary("nats request", err, classifyNATSError)
}
