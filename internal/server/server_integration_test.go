package server

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leslieo2/go-healthchecks/internal/config"
	"github.com/leslieo2/go-healthchecks/internal/hotreload"
	"github.com/leslieo2/go-healthchecks/internal/observability"
)

func newMetrics(t *testing.T) *observability.Metrics {
	t.Helper()
	m := observability.NewMetrics()
	require.NoError(t, m.Register())
	return m
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestServerStartServesChecksAndMetrics(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	metrics := newMetrics(t)
	cfg := testConfig(map[string]string{"db": "test.ok", "cache": "test.down"})
	ts := startTestServer(t, cfg, func(o *Options) { o.Metrics = metrics })

	resp, err := http.Get(ts.baseURL + "/db")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", readBody(t, resp))

	resp, err = http.Get(ts.baseURL + "/")
	require.NoError(t, err)
	assert.JSONEq(t, `{"db": true, "cache": false}`, readBody(t, resp))

	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ReportHealthy))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RequestCount.WithLabelValues(http.MethodGet, "/*", "200")))

	resp, err = http.Get("http://" + cfg.GetMetricsAddress() + cfg.Observability.Metrics.Path)
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "healthchecks_http_requests_total")
	assert.Contains(t, body, `healthchecks_check_runs_total{check="cache",outcome="unhealthy"}`)
}

func TestServerRateLimiting(t *testing.T) {
	cfg := testConfig(map[string]string{"db": "test.ok"})
	cfg.Security.RateLimit.Enabled = true
	cfg.Security.RateLimit.RequestsPerSecond = 1
	cfg.Security.RateLimit.BurstSize = 2
	s := newTestServer(t, cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, get(t, s, "/db").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestTLSIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testConfig(map[string]string{"db": "test.ok"})
	cfg.TLS.Enabled = true
	ts := startTestServer(t, cfg)

	client := &http.Client{
		Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
		Timeout:   5 * time.Second,
	}

	t.Run("check over https", func(t *testing.T) {
		resp, err := client.Get(ts.baseURL + "/db")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "true", readBody(t, resp))
	})

	t.Run("plain http is rejected", func(t *testing.T) {
		resp, err := (&http.Client{Timeout: 2 * time.Second}).Get("http://" + ts.addr + "/db")
		if err != nil {
			return
		}
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("negotiates TLS 1.2 or newer", func(t *testing.T) {
		conn, err := tls.Dial("tcp", ts.addr, &tls.Config{InsecureSkipVerify: true})
		require.NoError(t, err)
		defer conn.Close()
		assert.GreaterOrEqual(t, conn.ConnectionState().Version, uint16(tls.VersionTLS12))
	})
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReloadSwapsChecks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healthchecks.yaml")
	writeConfig(t, path, `
checks:
  services:
    db: test.ok
`)
	cfg, err := config.LoadConfig(path, nil)
	require.NoError(t, err)

	metrics := newMetrics(t)
	s := newTestServer(t, cfg, func(o *Options) {
		o.ConfigFile = path
		o.Metrics = metrics
	})
	assert.Equal(t, http.StatusNotFound, get(t, s, "/cache").Code)

	writeConfig(t, path, `
checks:
  services:
    db: test.ok
    cache: test.down
  error_code: 503
  error_code_header: X-Fail-With
access:
  db:
    - username: ops
      password: pw
`)
	require.NoError(t, s.Reload(context.Background()))

	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/cache").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, s, "/db").Code)

	req, _ := http.NewRequest(http.MethodGet, "/cache", nil)
	req.Header.Set("X-Fail-With", "502")
	assert.Equal(t, http.StatusBadGateway, serve(t, s, req).Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ConfigReloads.WithLabelValues("success")))
}

func TestReloadKeepsServingOnInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healthchecks.yaml")
	writeConfig(t, path, "checks:\n  services:\n    db: test.ok\n")
	cfg, err := config.LoadConfig(path, nil)
	require.NoError(t, err)

	metrics := newMetrics(t)
	s := newTestServer(t, cfg, func(o *Options) {
		o.ConfigFile = path
		o.Metrics = metrics
	})

	for name, content := range map[string]string{
		"unparseable":  "checks: [",
		"unresolvable": "checks:\n  services:\n    db: test.nope\n",
		"invalid":      "checks:\n  error_code: 42\n",
	} {
		t.Run(name, func(t *testing.T) {
			writeConfig(t, path, content)
			assert.Error(t, s.Reload(context.Background()))
			assert.Equal(t, "true", get(t, s, "/db").Body.String())
		})
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.ConfigReloads.WithLabelValues("failure")))
}

func TestHotReloadIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	path := filepath.Join(t.TempDir(), "healthchecks.yaml")
	writeConfig(t, path, "checks:\n  services:\n    db: test.ok\n")
	cfg, err := config.LoadConfig(path, nil)
	require.NoError(t, err)

	s := newTestServer(t, cfg, func(o *Options) { o.ConfigFile = path })

	manager, err := hotreload.NewManager(zap.NewNop())
	require.NoError(t, err)
	defer manager.Stop()
	manager.SetDebounceTime(50 * time.Millisecond)
	require.NoError(t, manager.AddWatch(path))
	require.NoError(t, manager.RegisterReloadable(s))
	require.NoError(t, manager.Start())

	assert.Equal(t, http.StatusNotFound, get(t, s, "/cache").Code)

	writeConfig(t, path, "checks:\n  services:\n    db: test.ok\n    cache: test.text\n")

	assert.Eventually(t, func() bool {
		return get(t, s, "/cache").Body.String() == "hello"
	}, 5*time.Second, 50*time.Millisecond)
}
