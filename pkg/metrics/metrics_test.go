package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stegguard/pkg/dispatcher"
	"stegguard/pkg/logging"
)

func TestNew(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)
	require.NotNil(t, m.Registry())

	// Two instances never collide: each owns its registry
	_, err = New()
	require.NoError(t, err)
}

func TestObserver(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)

	m.TaskSubmitted(dispatcher.Stats{MaxWorkers: 4, ActiveWorkers: 1, QueuedTasks: 0})
	m.TaskSubmitted(dispatcher.Stats{MaxWorkers: 4, ActiveWorkers: 1, QueuedTasks: 1})
	m.TaskFinished(dispatcher.StateCompleted, 30*time.Millisecond, dispatcher.Stats{MaxWorkers: 4, ActiveWorkers: 1})
	m.TaskFinished(dispatcher.StateTimedOut, time.Second, dispatcher.Stats{MaxWorkers: 4})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tasksSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("timed_out")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.taskDuration))

	// Without a watched pool the gauges stay at zero whatever the callbacks carried
	assert.Equal(t, 0.0, testutil.ToFloat64(m.maxWorkers))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeWorkers))
}

func TestWatchPool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		callbacks []dispatcher.Stats
		live      dispatcher.Stats
	}{
		{
			name: "idle pool",
			live: dispatcher.Stats{MaxWorkers: 4},
		},
		{
			name: "stale snapshot delivered last",
			callbacks: []dispatcher.Stats{
				{MaxWorkers: 4, ActiveWorkers: 0, QueuedTasks: 0},
				{MaxWorkers: 4, ActiveWorkers: 4, QueuedTasks: 3},
			},
			live: dispatcher.Stats{MaxWorkers: 4},
		},
		{
			name:      "busy pool",
			callbacks: []dispatcher.Stats{{MaxWorkers: 2}},
			live:      dispatcher.Stats{MaxWorkers: 2, ActiveWorkers: 2, QueuedTasks: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := New()
			require.NoError(t, err)
			m.WatchPool(func() dispatcher.Stats { return tt.live })

			for _, s := range tt.callbacks {
				m.TaskSubmitted(s)
				m.TaskStarted(s)
			}

			assert.Equal(t, float64(tt.live.MaxWorkers), testutil.ToFloat64(m.maxWorkers))
			assert.Equal(t, float64(tt.live.ActiveWorkers), testutil.ToFloat64(m.activeWorkers))
			assert.Equal(t, float64(tt.live.QueuedTasks), testutil.ToFloat64(m.queuedTasks))
		})
	}
}

func TestObserveVerdict(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)

	m.ObserveVerdict("IMAGE/PNG", true)
	m.ObserveVerdict("image/png", true)
	m.ObserveVerdict("image/png", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.verdictsTotal.WithLabelValues("image/png", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verdictsTotal.WithLabelValues("image/png", "false")))
}

func TestPoolIntegration(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)

	pool := dispatcher.New(func(_ context.Context, n int) (int, error) {
		return n * 2, nil
	}, dispatcher.Options{MaxWorkers: 2, Logger: logging.Discard(), Observer: m})
	defer pool.Shutdown()
	m.WatchPool(pool.Stats)

	for i := 0; i < 5; i++ {
		h, err := pool.Submit(i, 0)
		require.NoError(t, err)
		res, err := h.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i*2, res)
	}

	assert.Equal(t, 5.0, testutil.ToFloat64(m.tasksSubmitted))
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.tasksTotal.WithLabelValues("completed")) == 5 &&
			testutil.ToFloat64(m.activeWorkers) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.maxWorkers))
}

func TestHandler(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)
	m.ObserveVerdict("image/jpeg", false)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `stegguard_verdicts_total{mime_type="image/jpeg",suspicious="false"} 1`)
	assert.Contains(t, string(body), "stegguard_pool_max_workers")
}
