package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leslieo2/go-healthchecks/internal/heartbeat"
)

type testEnv struct {
	configFile string
	dsn        string
}

func newTestEnv(t *testing.T, services map[string]string) testEnv {
	t.Helper()
	t.Setenv("HEALTHCHECKS_CONFIG", "")

	dir := t.TempDir()
	env := testEnv{
		configFile: filepath.Join(dir, "healthchecks.yaml"),
		dsn:        filepath.Join(dir, "heartbeats.db"),
	}

	var b strings.Builder
	b.WriteString("storage:\n  driver: sqlite\n  dsn: " + env.dsn + "\n")
	b.WriteString("observability:\n  logging:\n    level: error\n    format: json\n    output: stderr\n")
	b.WriteString("checks:\n  services:\n")
	if len(services) == 0 {
		b.WriteString("    {}\n")
	}
	for name, ref := range services {
		b.WriteString("    " + name + ": " + ref + "\n")
	}
	require.NoError(t, os.WriteFile(env.configFile, []byte(b.String()), 0o600))
	return env
}

func (e testEnv) run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), append([]string{"--config", e.configFile}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func (e testEnv) monitors(t *testing.T) []heartbeat.Monitor {
	t.Helper()
	out, stderr, code := e.run(t, "heartbeats", "list", "--json")
	require.Zero(t, code, stderr)

	var monitors []heartbeat.Monitor
	require.NoError(t, json.Unmarshal([]byte(out), &monitors))
	return monitors
}

func TestBeat_CreatesMonitor(t *testing.T) {
	env := newTestEnv(t, nil)

	_, stderr, code := env.run(t, "beat", "nightly-backup", "--timeout", "2h")
	require.Zero(t, code, stderr)

	monitors := env.monitors(t)
	require.Len(t, monitors, 1)
	assert.Equal(t, "nightly-backup", monitors[0].Name)
	assert.True(t, monitors[0].Enabled)
	assert.Equal(t, 2*time.Hour, monitors[0].Timeout)
	require.NotNil(t, monitors[0].LastBeat)
}

func TestBeat_DefaultTimeoutOnlyOnCreate(t *testing.T) {
	env := newTestEnv(t, nil)

	_, _, code := env.run(t, "beat", "job", "--default-timeout", "5m")
	require.Zero(t, code)
	_, _, code = env.run(t, "beat", "job", "--default-timeout", "9m")
	require.Zero(t, code)

	monitors := env.monitors(t)
	require.Len(t, monitors, 1)
	assert.Equal(t, 5*time.Minute, monitors[0].Timeout)
}

func TestBeat_WrapsCommand(t *testing.T) {
	env := newTestEnv(t, nil)

	_, _, code := env.run(t, "beat", "failing", "--", "false")
	assert.Equal(t, 1, code)
	assert.Empty(t, env.monitors(t), "failed command must not record a pulse")

	_, stderr, code := env.run(t, "beat", "passing", "--", "true")
	require.Zero(t, code, stderr)
	monitors := env.monitors(t)
	require.Len(t, monitors, 1)
	assert.Equal(t, "passing", monitors[0].Name)
}

func TestBeat_RejectsExtraArgsWithoutDash(t *testing.T) {
	env := newTestEnv(t, nil)

	_, stderr, code := env.run(t, "beat", "job", "echo")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--")
}

func TestHeartbeats_EnableDisable(t *testing.T) {
	env := newTestEnv(t, nil)
	_, _, code := env.run(t, "beat", "job")
	require.Zero(t, code)

	out, _, code := env.run(t, "heartbeats", "disable", "job")
	require.Zero(t, code)
	assert.Equal(t, "job disabled\n", out)
	assert.False(t, env.monitors(t)[0].Enabled)

	_, _, code = env.run(t, "heartbeats", "enable", "job")
	require.Zero(t, code)
	assert.True(t, env.monitors(t)[0].Enabled)

	_, stderr, code := env.run(t, "heartbeats", "disable", "missing")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `no heartbeat monitor named "missing"`)
}

func TestHeartbeats_ListTable(t *testing.T) {
	env := newTestEnv(t, nil)
	_, _, code := env.run(t, "beat", "job", "--timeout", "1h")
	require.Zero(t, code)

	out, _, code := env.run(t, "heartbeats", "list")
	require.Zero(t, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, lines[1], "job")
	assert.Contains(t, lines[1], "1h0m0s")
	assert.True(t, strings.HasSuffix(lines[1], "ok"))
}

func TestWriteMonitorTable_NeverBeat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeMonitorTable(&buf, []heartbeat.Monitor{{Name: "idle", Enabled: true, Timeout: time.Minute}}, time.Now()))
	assert.Contains(t, buf.String(), "never")
	assert.Contains(t, buf.String(), "expired")
}

func TestReport(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		env := newTestEnv(t, map[string]string{
			"ok":  "contrib.check_dummy_true",
			"db":  "contrib.check_database",
			"mig": "contrib.check_open_migrations",
		})
		_, _, code := env.run(t, "migrate")
		require.Zero(t, code)

		out, stderr, code := env.run(t, "report")
		require.Zero(t, code, stderr)

		var results map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &results))
		assert.Equal(t, map[string]any{"ok": true, "db": true, "mig": true}, results)
	})

	t.Run("unhealthy exits 1", func(t *testing.T) {
		env := newTestEnv(t, map[string]string{
			"ok":   "contrib.check_dummy_true",
			"down": "contrib.check_dummy_false",
		})
		out, stderr, code := env.run(t, "report")
		assert.Equal(t, 1, code)
		assert.Empty(t, stderr)
		assert.Contains(t, out, `"down": false`)
	})

	t.Run("service filter", func(t *testing.T) {
		env := newTestEnv(t, map[string]string{
			"ok":   "contrib.check_dummy_true",
			"down": "contrib.check_dummy_false",
		})
		out, _, code := env.run(t, "report", "--service", "ok")
		require.Zero(t, code)
		assert.NotContains(t, out, "down")
	})

	t.Run("unknown service", func(t *testing.T) {
		env := newTestEnv(t, map[string]string{"down": "contrib.check_dummy_false"})
		out, stderr, code := env.run(t, "report", "--service", "dwon", "--service", "down", "--service", "nope")
		assert.Equal(t, 1, code)
		assert.Empty(t, out)
		assert.Contains(t, stderr, "unknown check(s): dwon, nope")
	})

	t.Run("pending migrations are not applied", func(t *testing.T) {
		env := newTestEnv(t, map[string]string{"mig": "contrib.check_open_migrations"})
		out, _, code := env.run(t, "report")
		assert.Equal(t, 1, code)
		assert.Contains(t, out, `"mig": false`)

		status, _, code := env.run(t, "migrate", "--status")
		require.Zero(t, code)
		assert.NotEqual(t, "0 pending migration(s)\n", status)
	})

	t.Run("unresolvable reference", func(t *testing.T) {
		env := newTestEnv(t, map[string]string{"bad": "contrib.no_such_check"})
		_, stderr, code := env.run(t, "report")
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr, "contrib.no_such_check")
	})
}

func TestMigrate(t *testing.T) {
	env := newTestEnv(t, nil)

	out, _, code := env.run(t, "migrate", "--status")
	require.Zero(t, code)
	assert.NotEqual(t, "0 pending migration(s)\n", out)

	_, _, code = env.run(t, "migrate")
	require.Zero(t, code)

	out, _, code = env.run(t, "migrate", "--status")
	require.Zero(t, code)
	assert.Equal(t, "0 pending migration(s)\n", out)
}

func TestExecute_InvalidConfig(t *testing.T) {
	env := newTestEnv(t, nil)

	_, stderr, code := env.run(t, "report", "--storage-driver", "mysql")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "driver must be one of")
}

func TestServe_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t, map[string]string{"ok": "contrib.check_dummy_true"})

	port, metricsPort := freePort(t), freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		var stdout, stderr bytes.Buffer
		done <- Execute(ctx, []string{
			"--config", env.configFile,
			"serve", "--host", "127.0.0.1", "--port", port, "--metrics-port", metricsPort, "--hot-reload=false",
		}, &stdout, &stderr)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case code := <-done:
		assert.Zero(t, code)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return strconv.Itoa(l.Addr().(*net.TCPAddr).Port)
}
