// internal/browser/context.go
package browser

import (
	"context"
	"time"
)

// CombineContext derives a context from session (so chromedp target values are
// kept) that is also canceled when op is done. session carries the browser
// connection; op carries the caller's deadline.
func CombineContext(session, op context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(session)
	stop := context.AfterFunc(op, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}

// WithOpTimeout is CombineContext plus a timeout on the combined context.
func WithOpTimeout(session, op context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	combined, cancelCombined := CombineContext(session, op)
	timed, cancelTimed := context.WithTimeout(combined, timeout)
	return timed, func() {
		cancelTimed()
		cancelCombined()
	}
}

type detachedContext struct{ context.Context }

func (detachedContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detachedContext) Done() <-chan struct{}       { return nil }
func (detachedContext) Err() error                  { return nil }

// Detach returns a context with the values of ctx but none of its
// cancellation. Cleanup on the failure path runs on it, so a canceled run
// still captures diagnostics and releases the session.
func Detach(ctx context.Context) context.Context {
	return detachedContext{ctx}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PollUntil calls check every interval until it reports done, returns an
// error, or timeout elapses. On timeout it returns context.DeadlineExceeded.
func PollUntil(ctx context.Context, timeout, interval time.Duration, check func(context.Context) (bool, error)) error {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := check(pollCtx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-pollCtx.Done():
			return pollCtx.Err()
		case <-ticker.C:
		}
	}
}

// Bounded runs fn in its own goroutine and waits at most timeout for it. When
// the wait is cut short, abort is called and Bounded returns without waiting
// for fn. It is used for client calls that take no context of their own.
func Bounded(ctx context.Context, timeout time.Duration, fn func() error, abort func()) error {
	errc := make(chan error, 1)
	go func() { errc <- fn() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-errc:
		return err
	case <-timer.C:
		abort()
		return context.DeadlineExceeded
	case <-ctx.Done():
		abort()
		return ctx.Err()
	}
}
