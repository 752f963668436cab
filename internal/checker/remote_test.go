package checker

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"a": true}`))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`true`))
		case "/broken":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"a": false}`))
		case "/garbage":
			_, _ = w.Write([]byte(`<html>`))
		}
	}))
	defer srv.Close()

	reg := RegistryFromServices(map[string]string{
		"ok":      srv.URL + "/ok",
		"slow":    srv.URL + "/slow",
		"broken":  srv.URL + "/broken",
		"garbage": srv.URL + "/garbage",
		"refused": "http://127.0.0.1:1/health",
	})
	c := New(reg, nil, Options{RemoteTimeout: 50 * time.Millisecond})

	report, err := c.CreateReport(newRequest())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"a": true}, report.Results["ok"])
	assert.Equal(t, false, report.Results["slow"])
	assert.Equal(t, false, report.Results["broken"])
	assert.Equal(t, false, report.Results["garbage"])
	assert.Equal(t, false, report.Results["refused"])
	assert.False(t, report.Healthy)

	v, err := c.CreateServiceResult(newRequest(), "ok", "a")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = c.CreateServiceResult(newRequest(), "ok", "missing")
	require.NoError(t, err)
	assert.Nil(t, v)
}
