package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector()

	c.ObserveTurn("book_flight", 10*time.Millisecond)
	c.ObserveTurn("book_flight", 20*time.Millisecond)
	c.ObserveBackendCall("cancel_booking", "ok", time.Millisecond)
	c.InvariantReset()
	c.IdleExpired(3)
	c.SetCacheEntries("workflow", 5, 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.turns.WithLabelValues("book_flight")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.backendCalls.WithLabelValues("cancel_booking", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.invariantResets))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.idleExpired))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.cacheEntries.WithLabelValues("workflow", "active")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.ObserveTurn("greeting", time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `airbot_turns_total{intent="greeting"} 1`)
}
