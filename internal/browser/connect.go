// internal/browser/connect.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/rebootctl/api/schemas"
)

// ConnectStep names the connection step in errors.
const ConnectStep = "connect to browser endpoint"

// ConnectWithRetry calls dial until it succeeds, using a fixed number of
// attempts with a fixed delay. This waits for the endpoint to come up; the
// run itself is never retried. The final failure is a navigation error.
func ConnectWithRetry(ctx context.Context, attempts int, delay time.Duration, logger *zap.Logger,
	dial func(context.Context) (schemas.SessionDriver, error)) (schemas.SessionDriver, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		d, err := dial(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("Browser endpoint is ready.", zap.Int("attempt", attempt))
			}
			return d, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		logger.Warn("Browser endpoint not ready.",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.String("error", FirstLine(err)))
		if attempt < attempts {
			if err := Sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}
	}
	return nil, schemas.NewStepError(schemas.ErrKindNavigation, ConnectStep,
		fmt.Errorf("could not connect after %d attempts: %w", attempts, lastErr))
}

// FirstLine returns the first line of err's message. Driver errors often
// carry a multi-line call log.
func FirstLine(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
