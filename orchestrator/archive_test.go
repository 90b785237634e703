package orchestrator

import (
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/promptflow/config"
	"github.com/BaSui01/promptflow/internal/metrics"
	"github.com/BaSui01/promptflow/testutil"
	"github.com/BaSui01/promptflow/types"
)

func newTestArchive(t *testing.T, ttl time.Duration) (*Archive, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	a, err := NewArchive(testutil.TestContext(t), config.RedisConfig{Addr: mr.Addr(), TTL: ttl}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, mr
}

func sampleResult(batchID string) *types.BatchResult {
	now := time.Now().Truncate(time.Millisecond)
	return &types.BatchResult{
		BatchID:        batchID,
		CompletedTasks: 1,
		FailedTasks:    1,
		TotalTasks:     2,
		Results: []types.TaskResult{
			{TaskID: "t1", Status: types.TaskSucceeded, Model: modelPro, Result: "ok", Attempts: 1},
			{TaskID: "t2", Status: types.TaskFailed, Error: types.NewError(types.KindFallbackExhausted, "exhausted"), Attempts: 2},
		},
		TotalTime:   3 * time.Second,
		CreatedAt:   now.Add(-3 * time.Second),
		CompletedAt: now,
	}
}

func TestArchive_StoreLoad(t *testing.T) {
	a, _ := newTestArchive(t, time.Hour)
	ctx := testutil.TestContext(t)

	stored := sampleResult("b1")
	require.NoError(t, a.Store(ctx, stored))

	loaded, err := a.Load(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, stored.BatchID, loaded.BatchID)
	assert.Equal(t, stored.CompletedTasks, loaded.CompletedTasks)
	assert.Equal(t, stored.FailedTasks, loaded.FailedTasks)
	require.Len(t, loaded.Results, 2)
	assert.Equal(t, "ok", loaded.Results[0].Result)
	require.NotNil(t, loaded.Results[1].Error)
	assert.Equal(t, types.KindFallbackExhausted, loaded.Results[1].Error.Kind)
}

func TestArchive_LoadMissing(t *testing.T) {
	a, _ := newTestArchive(t, time.Hour)

	_, err := a.Load(testutil.TestContext(t), "nope")
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestArchive_TTLApplied(t *testing.T) {
	a, mr := newTestArchive(t, time.Hour)
	ctx := testutil.TestContext(t)

	require.NoError(t, a.Store(ctx, sampleResult("b1")))
	assert.Equal(t, time.Hour, mr.TTL(archiveKeyPrefix+"b1"))

	mr.FastForward(2 * time.Hour)
	_, err := a.Load(ctx, "b1")
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestArchive_Delete(t *testing.T) {
	a, _ := newTestArchive(t, time.Hour)
	ctx := testutil.TestContext(t)

	require.NoError(t, a.Store(ctx, sampleResult("b1")))
	require.NoError(t, a.Delete(ctx, "b1"))
	_, err := a.Load(ctx, "b1")
	assert.ErrorIs(t, err, ErrBatchNotFound)

	// Deleting an absent key is not an error.
	assert.NoError(t, a.Delete(ctx, "b1"))
}

func TestNewArchive_BadAddr(t *testing.T) {
	_, err := NewArchive(testutil.TestContext(t), config.RedisConfig{Addr: "127.0.0.1:1"}, zap.NewNop())
	require.Error(t, err)
}

func TestArchive_StoreRecordsWriteMetric(t *testing.T) {
	const namespace = "promptflow_archive_metric_test"
	collector := metrics.NewCollector(namespace, zap.NewNop())

	mr := miniredis.RunT(t)
	ctx := testutil.TestContext(t)
	a, err := NewArchive(ctx, config.RedisConfig{Addr: mr.Addr(), TTL: time.Hour},
		zap.NewNop(), WithArchiveMetrics(collector))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.Store(ctx, sampleResult("b1")))

	mr.Close()
	require.Error(t, a.Store(ctx, sampleResult("b2")))

	metricName := namespace + "_archive_writes_total"
	expected := `
# HELP ` + metricName + ` Total number of batch result archive writes
# TYPE ` + metricName + ` counter
` + metricName + `{status="error"} 1
` + metricName + `{status="ok"} 1
`
	require.NoError(t, promtestutil.GatherAndCompare(prometheus.DefaultGatherer,
		strings.NewReader(expected), metricName))
}
