package oracle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// IsRetryable classifies an oracle call error. Context cancellation and
// deadline expiry are never retryable — the executor handles those as
// cancellation and timeout respectively. Rate limits, server errors, and
// transport failures are worth another attempt.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.DebugContext(ctx, "oracle error not retryable: context cancelled or deadline exceeded")
		return false
	}

	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return retryableStatus(ctx, oaiErr.StatusCode)
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return retryableStatus(ctx, antErr.StatusCode)
	}

	// Network errors (no API response) are generally retryable
	slog.WarnContext(ctx, "oracle network error, will retry", "error", err)
	return true
}

func retryableStatus(ctx context.Context, status int) bool {
	switch {
	case status == 429:
		slog.WarnContext(ctx, "oracle rate limited, will retry", "status_code", status)
		return true
	case status >= 500:
		slog.WarnContext(ctx, "oracle server error, will retry", "status_code", status)
		return true
	default:
		slog.DebugContext(ctx, "oracle client error, not retryable", "status_code", status)
		return false
	}
}
