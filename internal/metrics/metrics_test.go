package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rpggio/attemptlog/internal/domain/attempt"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := New(reg)
	require.NoError(t, err)

	rec.CommandCompleted("create", nil)
	rec.CommandCompleted("create", attempt.ErrActiveAttemptExists)
	rec.CommandCompleted("stop", attempt.ErrAttemptInactive)
	rec.CommandCompleted("start", errors.New("disk full"))
	rec.RemoteEventsSkipped("a1", 3)
	rec.HydrationObserved("2024-03-10", 2, 5*time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(rec.commands.WithLabelValues("create", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.commands.WithLabelValues("create", "conflict")))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.commands.WithLabelValues("stop", "rejected")))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.commands.WithLabelValues("start", "error")))
	require.Equal(t, 3.0, testutil.ToFloat64(rec.skippedEvents))
	require.Equal(t, 2.0, testutil.ToFloat64(rec.hydrated))
}

func TestRecorder_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.Error(t, err)
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := New(reg)
	require.NoError(t, err)
	rec.CommandCompleted("create", nil)

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), `attempt_commands_total{command="create",result="ok"} 1`))
}
