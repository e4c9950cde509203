package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

// HTTPStatusError is a non-2xx answer from an upstream HTTP dependency.
type HTTPStatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "upstream status error"
	}
	prefix := strings.TrimSpace(e.Service + " " + e.Operation)
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s status: %s", prefix, e.Status)
	}
	return fmt.Sprintf("%s status: %s: %s", prefix, e.Status, strings.TrimSpace(e.Body))
}

// RetryableStatuses are the answers worth retrying for model servers.
var RetryableStatuses = []int{
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// ScraperRetryableStatuses mirror the forced-retry list for catalog pages.
var ScraperRetryableStatuses = []int{
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// HTTPClassifier retries transport failures and the given statuses.
// Cancellation is never retried.
func HTTPClassifier(retryable []int) ErrorClassifier {
	return func(err error) ErrorClassification {
		if err == nil {
			return ErrorClassification{}
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ErrorClassification{Retryable: false, RecordFailure: false}
		}
		if IsCircuitOpen(err) {
			return ErrorClassification{Retryable: true, RecordFailure: true}
		}

		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			for _, code := range retryable {
				if statusErr.StatusCode == code {
					return ErrorClassification{Retryable: true, RecordFailure: true}
				}
			}
			return ErrorClassification{Retryable: false, RecordFailure: false}
		}

		var netErr net.Error
		if errors.As(err, &netErr) {
			return ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
}

// WrapTemporary marks retryable failures as domain.ErrTemporary once retries
// are exhausted.
func WrapTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier == nil {
		classifier = HTTPClassifier(RetryableStatuses)
	}
	if classifier(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
