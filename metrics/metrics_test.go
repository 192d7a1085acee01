package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m Meter) string {
	t.Helper()
	srv := httptest.NewServer(Handler(m))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewDisabled(t *testing.T) {
	m, err := New(&Config{Enabled: false})
	require.NoError(t, err)

	c, err := m.Counter("x_total", "x")
	require.NoError(t, err)
	c.Inc(context.Background())
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestNewNilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	_, err := New(&Config{Enabled: true, Port: 70000})
	assert.Error(t, err)

	_, err = New(&Config{Enabled: true, Path: "metrics"})
	assert.Error(t, err)
}

func TestMeterExportsToPrometheus(t *testing.T) {
	ctx := context.Background()
	m, err := New(NewDevDefaultConfig("ledger-test"))
	require.NoError(t, err)
	defer m.Shutdown(ctx)

	acquired, err := m.Counter("acctlock_acquired_total", "锁获取次数")
	require.NoError(t, err)
	acquired.Inc(ctx, L("mode", "write"))
	acquired.Add(ctx, 2, L("mode", "write"))

	held, err := m.Gauge("acctlock_held", "当前持有的锁")
	require.NoError(t, err)
	held.Inc(ctx)
	held.Inc(ctx)
	held.Dec(ctx)

	wait, err := m.Histogram("acctlock_wait_seconds", "锁等待耗时", WithUnit("s"))
	require.NoError(t, err)
	wait.Record(ctx, 0.01, L("mode", "read"))

	body := scrape(t, m)
	assert.Contains(t, body, "acctlock_acquired_total")
	assert.Contains(t, body, `mode="write"`)
	assert.Contains(t, body, "acctlock_held")
	assert.Contains(t, body, "acctlock_wait_seconds")
}

// 两个独立的 Meter 使用各自的 Registry，互不影响
func TestMetersAreIsolated(t *testing.T) {
	ctx := context.Background()
	m1, err := New(NewDevDefaultConfig("a"))
	require.NoError(t, err)
	defer m1.Shutdown(ctx)
	m2, err := New(NewDevDefaultConfig("b"))
	require.NoError(t, err)
	defer m2.Shutdown(ctx)

	c, err := m1.Counter("only_in_first_total", "x")
	require.NoError(t, err)
	c.Inc(ctx)

	assert.Contains(t, scrape(t, m1), "only_in_first_total")
	assert.NotContains(t, scrape(t, m2), "only_in_first_total")
}

func TestLabelKeyOrderIndependent(t *testing.T) {
	a := labelKey([]Label{L("a", "1"), L("b", "2")})
	b := labelKey([]Label{L("b", "2"), L("a", "1")})
	assert.Equal(t, a, b)
	assert.Equal(t, "", labelKey(nil))
}

func TestHandlerForDiscard(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(Discard()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRuntimeMetrics(t *testing.T) {
	cfg := NewDevDefaultConfig("runtime-test")
	cfg.Runtime = true
	m, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	assert.Contains(t, scrape(t, m), "go_")
}
