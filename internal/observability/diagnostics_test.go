package observability_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Sumatoshi-tech/repairharvest/internal/observability"
)

var errNotReady = errors.New("checkpoint not writable")

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestDiagnosticsServer_Endpoints(t *testing.T) {
	t.Parallel()

	reader, metrics, err := observability.NewPrometheusReader()
	require.NoError(t, err)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	srv, err := observability.NewDiagnosticsServer("127.0.0.1:0", metrics)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, srv.Close()) })

	base := "http://" + srv.Addr()

	code, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "ok")

	code, _ = get(t, base+"/readyz")
	assert.Equal(t, http.StatusOK, code)

	code, body = get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
}

func TestDiagnosticsServer_NotReady(t *testing.T) {
	t.Parallel()

	srv, err := observability.NewDiagnosticsServer("127.0.0.1:0", nil,
		func(context.Context) error { return errNotReady })
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, srv.Close()) })

	code, _ := get(t, "http://"+srv.Addr()+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = get(t, "http://"+srv.Addr()+"/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}
