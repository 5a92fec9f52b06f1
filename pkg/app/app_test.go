package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klazomenai/provider-static-server/pkg/assets"
	"github.com/klazomenai/provider-static-server/pkg/config"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			IdleTimeout:     5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Assets: config.AssetsConfig{
			Dir:           dir,
			EntryDocument: "index.html",
			BuildCommand:  "pnpm run build",
		},
		Probe:   config.ProbeConfig{Interval: time.Hour},
		Logging: config.LoggingConfig{Level: "info", Format: "json"},
	}
}

func builtDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>entry</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "static", "js"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "static", "js", "main.0a1b2c3d.js"), []byte("console.log(1)"), 0o644))
	return dir
}

// get performs a request without keep-alive so no client goroutines outlive it.
func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func startApp(t *testing.T, cfg *config.Config) (*App, context.CancelFunc, <-chan error) {
	t.Helper()

	a, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, StateNotReady, a.State())

	require.NoError(t, a.Listen())
	require.Equal(t, StateServing, a.State())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	return a, cancel, done
}

func waitStopped(t *testing.T, done <-chan error) {
	t.Helper()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestNew_MissingDirectory(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "dist"))

	a, err := New(cfg, zerolog.Nop())
	assert.Nil(t, a)
	assert.True(t, errors.Is(err, assets.ErrNotBuilt))
}

func TestNew_MissingEntryDocument(t *testing.T) {
	cfg := testConfig(t.TempDir())

	_, err := New(cfg, zerolog.Nop())
	require.Error(t, err)

	var missing *assets.MissingError
	require.True(t, errors.As(err, &missing))
	assert.Empty(t, missing.Dir)
	assert.Equal(t, filepath.Join(cfg.Assets.Dir, "index.html"), missing.Entry)
}

func TestServe_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, cancel, done := startApp(t, testConfig(builtDir(t)))
	base := fmt.Sprintf("http://%s", a.Addr())

	resp, body := get(t, base+"/static/js/main.0a1b2c3d.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "console.log(1)", body)
	assert.Equal(t, "public, max-age=31536000, immutable", resp.Header.Get("Cache-Control"))

	resp, body = get(t, base+"/settings/profile")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>entry</html>", body)
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	assert.Nil(t, a.AdminAddr(), "admin listener is disabled by default")

	cancel()
	waitStopped(t, done)
}

func TestServe_AdminListener(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig(builtDir(t))
	cfg.Admin.Addr = "127.0.0.1:0"

	a, cancel, done := startApp(t, cfg)
	require.NotNil(t, a.AdminAddr())

	// The main listener never shadows asset paths with admin endpoints.
	resp, body := get(t, fmt.Sprintf("http://%s/metrics", a.Addr()))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>entry</html>", body)

	admin := fmt.Sprintf("http://%s", a.AdminAddr())
	resp, body = get(t, admin+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, body)

	resp, body = get(t, admin+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "provider_entry_document_present 1")
	assert.Contains(t, body, `provider_http_requests_total{method="GET",outcome="fallback",status="200"} 1`)

	cancel()
	waitStopped(t, done)
}

func TestServe_StopsAssetChecksOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig(builtDir(t))
	cfg.Probe.Interval = 5 * time.Millisecond

	a, cancel, done := startApp(t, cfg)

	checks := func() float64 {
		var metric dto.Metric
		require.NoError(t, a.metrics.AssetChecksTotal.Write(&metric))
		return metric.GetCounter().GetValue()
	}
	require.Eventually(t, func() bool { return checks() >= 3 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	waitStopped(t, done)

	stopped := checks()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, checks(), "no checks may run after Serve returns")
}

func TestListen_PortInUse(t *testing.T) {
	dir := builtDir(t)

	first, cancel, done := startApp(t, testConfig(dir))
	defer func() {
		cancel()
		waitStopped(t, done)
	}()

	cfg := testConfig(dir)
	cfg.Server.Port = first.Addr().(*net.TCPAddr).Port

	second, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	err = second.Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
	assert.Equal(t, StateNotReady, second.State())
}

func TestServe_BeforeListen(t *testing.T) {
	a, err := New(testConfig(builtDir(t)), zerolog.Nop())
	require.NoError(t, err)

	assert.Error(t, a.Serve(context.Background()))
	assert.Nil(t, a.Addr())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "NOT_READY", StateNotReady.String())
	assert.Equal(t, "SERVING", StateServing.String())
	assert.Equal(t, "State(7)", State(7).String())
}
