// internal/browser/context_test.go
package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestCombineContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	type ctxKey string
	const key ctxKey = "target"

	t.Run("InheritsValuesFromSession", func(t *testing.T) {
		session := context.WithValue(context.Background(), key, "tab-1")
		combined, cancel := CombineContext(session, context.Background())
		defer cancel()

		assert.Equal(t, "tab-1", combined.Value(key))
		assert.NoError(t, combined.Err())
	})

	t.Run("CancelledBySession", func(t *testing.T) {
		session, cancelSession := context.WithCancel(context.Background())
		combined, cancel := CombineContext(session, context.Background())
		defer cancel()

		cancelSession()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("CancelledByOperation", func(t *testing.T) {
		op, cancelOp := context.WithCancel(context.Background())
		combined, cancel := CombineContext(context.Background(), op)
		defer cancel()

		cancelOp()
		assert.Eventually(t, func() bool { return combined.Err() != nil }, time.Second, 5*time.Millisecond)
	})

	t.Run("OperationTimeout", func(t *testing.T) {
		timed, cancel := WithOpTimeout(context.Background(), context.Background(), 20*time.Millisecond)
		defer cancel()

		<-timed.Done()
		assert.ErrorIs(t, timed.Err(), context.DeadlineExceeded)
	})
}

func TestDetach(t *testing.T) {
	type ctxKey string
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey("k"), "v"))
	cancel()

	detached := Detach(parent)
	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	_, hasDeadline := detached.Deadline()
	assert.False(t, hasDeadline)
	assert.Equal(t, "v", detached.Value(ctxKey("k")))
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestPollUntil(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("returns once the check is done", func(t *testing.T) {
		calls := 0
		err := PollUntil(context.Background(), time.Second, time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("times out", func(t *testing.T) {
		err := PollUntil(context.Background(), 20*time.Millisecond, 5*time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("stops on check error", func(t *testing.T) {
		boom := errors.New("rejected")
		err := PollUntil(context.Background(), time.Second, time.Millisecond, func(context.Context) (bool, error) {
			return false, boom
		})
		assert.ErrorIs(t, err, boom)
	})
}

func TestBounded(t *testing.T) {
	t.Run("returns the function result", func(t *testing.T) {
		err := Bounded(context.Background(), time.Second, func() error { return errors.New("closed") }, func() {})
		assert.EqualError(t, err, "closed")
	})

	t.Run("aborts on timeout", func(t *testing.T) {
		release := make(chan struct{})
		aborted := false
		err := Bounded(context.Background(), 10*time.Millisecond, func() error {
			<-release
			return nil
		}, func() {
			aborted = true
			close(release)
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.True(t, aborted)
	})
}
