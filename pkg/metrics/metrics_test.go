package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quiver/pkg/handle"
)

func TestCollectorImplementsHandleObserver(t *testing.T) {
	c := NewCollector("")
	reg := handle.New[string](handle.KindTable, handle.WithObserver[string](c))

	h, err := reg.Insert("a")
	require.NoError(t, err)
	_, err = reg.Insert("b")
	require.NoError(t, err)
	require.NoError(t, reg.Free(h))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.liveHandles.WithLabelValues("table")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.handleOps.WithLabelValues("table", "insert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.handleOps.WithLabelValues("table", "remove")))
}

func TestEngineAndSniffCounters(t *testing.T) {
	c := NewCollector("quiver")

	c.EngineOp("decode", "parquet", 5*time.Millisecond, nil)
	c.EngineOp("decode", "parquet", time.Millisecond, errors.New("bad footer"))
	c.EngineBytes("in", "parquet", 1024)
	c.SniffResult("parquet", "ok")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.engineErrors.WithLabelValues("decode", "parquet")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(c.engineBytes.WithLabelValues("in", "parquet")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sniffs.WithLabelValues("parquet", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.engineDuration))
}

func TestHandlerServesText(t *testing.T) {
	c := NewCollector("quiver")
	c.LiveHandles(handle.KindSchema, 3)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(body, `quiver_live_handles{kind="schema"} 3`), body)
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)
}
