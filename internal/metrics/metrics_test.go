package metrics_test

import (
	"chatroom/backend/internal/metrics"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveWrite(t *testing.T) {
	okBefore := testutil.ToFloat64(metrics.StoreWrites.WithLabelValues("test_op", "ok"))
	errBefore := testutil.ToFloat64(metrics.StoreWrites.WithLabelValues("test_op", "error"))

	metrics.ObserveWrite("test_op", nil)
	metrics.ObserveWrite("test_op", errors.New("boom"))
	metrics.ObserveWrite("test_op", errors.New("boom"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(metrics.StoreWrites.WithLabelValues("test_op", "ok")))
	assert.Equal(t, errBefore+2, testutil.ToFloat64(metrics.StoreWrites.WithLabelValues("test_op", "error")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	metrics.ActiveRooms.Set(2)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "chatroom_active_room_sessions 2"))
}
