package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leslieo2/go-healthchecks/internal/checker"
	"github.com/leslieo2/go-healthchecks/internal/config"
	"github.com/leslieo2/go-healthchecks/internal/observability"
	"github.com/leslieo2/go-healthchecks/internal/security"
)

func value(v any) checker.Reference {
	return checker.FuncRef(func(context.Context) (any, error) { return v, nil })
}

// testLibrary registers the checks the server tests reference by path.
func testLibrary() *checker.Library {
	lib := checker.NewLibrary()
	lib.MustRegister("test.ok", value(true))
	lib.MustRegister("test.down", value(false))
	lib.MustRegister("test.text", value("hello"))
	lib.MustRegister("test.bytes", value([]byte("raw")))
	lib.MustRegister("test.nested", value(map[string]any{
		"a":    true,
		"b":    false,
		"info": map[string]any{"version": "1.2.0"},
	}))
	lib.MustRegister("test.boom", checker.FuncRef(func(context.Context) (any, error) {
		return nil, errors.New("boom")
	}))
	return lib
}

func testBuilder(lib *checker.Library, metrics *observability.Metrics) Builder {
	return func(cfg *config.Config) (*checker.Checker, error) {
		return checker.New(checker.RegistryFromServices(cfg.Checks.Services), lib, checker.Options{
			Policy:        security.NewAccessPolicy(cfg.Access),
			RemoteTimeout: cfg.Checks.RemoteTimeout,
			Parallel:      cfg.Checks.Parallel,
			Metrics:       metrics,
		}), nil
	}
}

func testConfig(services map[string]string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Checks.Services = services
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...func(*Options)) *Server {
	t.Helper()

	o := Options{Logger: observability.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Build == nil {
		o.Build = testBuilder(testLibrary(), o.Metrics)
	}

	s, err := New(cfg, o)
	require.NoError(t, err)
	t.Cleanup(s.rateLimiter.Stop)
	return s
}

// testServer holds information about a running test server.
type testServer struct {
	server  *Server
	addr    string
	baseURL string
}

// startTestServer runs Start on a free port and stops it when the test ends.
func startTestServer(t *testing.T, cfg *config.Config, opts ...func(*Options)) *testServer {
	t.Helper()

	if cfg.TLS.Enabled && (cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "") {
		certFile, keyFile, err := generateTestCertificates(t.TempDir())
		require.NoError(t, err)
		cfg.TLS.CertFile = certFile
		cfg.TLS.KeyFile = keyFile
	}

	cfg.Server.Host = "localhost"
	cfg.Server.Port = freePort(t)
	cfg.Server.MetricsPort = freePort(t)

	s := newTestServer(t, cfg, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("server returned an error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})

	protocol := "http"
	if cfg.TLS.Enabled {
		protocol = "https"
	}
	addr := cfg.GetServerAddress()
	ts := &testServer{server: s, addr: addr, baseURL: fmt.Sprintf("%s://%s", protocol, addr)}

	waitForServerReady(t, ts.baseURL, cfg.TLS.Enabled)
	return ts
}

func freePort(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer listener.Close()
	return fmt.Sprintf("%d", listener.Addr().(*net.TCPAddr).Port)
}

func waitForServerReady(t *testing.T, baseURL string, tlsEnabled bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)

	client := &http.Client{Timeout: 1 * time.Second}
	if tlsEnabled {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/")
		if err == nil {
			_ = resp.Body.Close()
			// Any response from the server means it's up.
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("Server at %s failed to start within timeout", baseURL)
}

func generateTestCertificates(tmpDir string) (string, string, error) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", "", err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privKey.PublicKey, privKey)
	if err != nil {
		return "", "", err
	}

	certFile := filepath.Join(tmpDir, "test-cert.pem")
	certOut, err := os.Create(certFile)
	if err != nil {
		return "", "", err
	}
	defer certOut.Close()
	if err = pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: certDER}); err != nil {
		return "", "", err
	}

	keyFile := filepath.Join(tmpDir, "test-key.pem")
	keyOut, err := os.Create(keyFile)
	if err != nil {
		return "", "", err
	}
	defer keyOut.Close()

	privKeyBytes, err := x509.MarshalPKCS8PrivateKey(privKey)
	if err != nil {
		return "", "", err
	}
	if err = pem.Encode(keyOut, &pem.Block{Type: "PRIVATE KEY", Bytes: privKeyBytes}); err != nil {
		return "", "", err
	}

	return certFile, keyFile, nil
}
