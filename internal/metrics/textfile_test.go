package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/rebootctl/api/schemas"
)

func TestRecorder_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile", "rebootctl.prom")
	r, err := NewRecorder(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	started := time.Unix(1_700_000_000, 0)
	require.NoError(t, r.Record(&schemas.RunResult{
		Status:    schemas.StatusSuccess,
		StartedAt: started,
		Duration:  12 * time.Second,
	}))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.success))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.duration))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.failure.WithLabelValues(string(schemas.ErrKindAuthentication))))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rebootctl_last_run_success 1")
	assert.Contains(t, string(data), "rebootctl_last_run_timestamp_seconds 1.7e+09")
}

func TestRecorder_Failure(t *testing.T) {
	r, err := NewRecorder("", zaptest.NewLogger(t))
	require.NoError(t, err)

	r.Observe(&schemas.RunResult{
		Status:      schemas.StatusFailure,
		FailureKind: schemas.ErrKindAuthentication,
		StartedAt:   time.Now(),
		Artifacts:   &schemas.ArtifactPaths{ScreenshotPath: "/app/errors/error_screenshot.png"},
		Err:         errors.New("login rejected"),
	})

	assert.Equal(t, 0.0, testutil.ToFloat64(r.success))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failure.WithLabelValues(string(schemas.ErrKindAuthentication))))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.failure.WithLabelValues(string(schemas.ErrKindNavigation))))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.artifacts))
	assert.Equal(t, 5, testutil.CollectAndCount(r.failure))

	assert.NoError(t, r.Flush(), "flush without a path is a no-op")
}
