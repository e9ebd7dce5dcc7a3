package http

import (
	"context"
	"log/slog"
)

func httpLogger() *slog.Logger {
	return slog.Default().With(
		"service", "storefront",
		"module", "http",
		"layer", "adapter",
	)
}

// logHTTPOperationError records a failed operation once, at the severity the
// status class implies. Client errors are warnings; only 5xx pages anyone.
func logHTTPOperationError(ctx context.Context, operation string, statusCode int, code, message string, err error) {
	fields := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
		"message", message,
		"request_id", requestIDFromContext(ctx),
	}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}

	logger := httpLogger()
	if statusCode >= 500 {
		logger.ErrorContext(ctx, "http operation failed", fields...)
	} else {
		logger.WarnContext(ctx, "http operation failed", fields...)
	}
}
