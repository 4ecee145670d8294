package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"calheat/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestOTelInitialization tests OpenTelemetry initialization with both exporters
func TestOTelInitialization(t *testing.T) {
	providers, err := InitializeOTel(config.TelemetryConfig{
		Environment:    "test",
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		SampleRatio:    1,
	}, testLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

// TestOTelConfiguration tests exporter selection
func TestOTelConfiguration(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.TelemetryConfig
		wantErr     bool
		wantTracing bool
		wantMetrics bool
	}{
		{
			name: "everything disabled",
			cfg:  config.TelemetryConfig{TraceExporter: "none", MetricExporter: "none"},
		},
		{
			name: "empty means disabled",
			cfg:  config.TelemetryConfig{},
		},
		{
			name:        "prometheus only",
			cfg:         config.TelemetryConfig{TraceExporter: "none", MetricExporter: "prometheus"},
			wantMetrics: true,
		},
		{
			name:    "unknown metric exporter",
			cfg:     config.TelemetryConfig{MetricExporter: "statsd"},
			wantErr: true,
		},
		{
			name:    "unknown trace exporter",
			cfg:     config.TelemetryConfig{TraceExporter: "jaeger"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.cfg, testLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer providers.Shutdown(context.Background())

			assert.Equal(t, tt.wantTracing, providers.TracerProvider != nil)
			assert.Equal(t, tt.wantMetrics, providers.MeterProvider != nil)
			assert.Equal(t, tt.wantMetrics, providers.PrometheusHTTP != nil)
			// the global no-op implementations are always usable
			assert.NotNil(t, providers.Tracer)
			assert.NotNil(t, providers.Meter)
		})
	}
}

// TestTracePropagation tests trace propagation across contexts
func TestTracePropagation(t *testing.T) {
	providers, err := InitializeOTel(config.TelemetryConfig{
		TraceExporter: "stdout",
		SampleRatio:   1,
	}, testLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, parent := providers.Tracer.Start(context.Background(), "parent-operation")
	defer parent.End()

	_, child := providers.Tracer.Start(ctx, "child-operation")
	defer child.End()

	assert.True(t, parent.SpanContext().IsValid())
	assert.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
	assert.NotEqual(t, parent.SpanContext().SpanID(), child.SpanContext().SpanID())
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m.Data
		}
	}
	return found
}

// TestHeatmapMetrics tests the render cycle instruments
func TestHeatmapMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	metrics, err := CreateHeatmapMetrics(meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.CyclesTotal.Add(ctx, 1)
	metrics.RowsAggregated.Add(ctx, 42)
	metrics.RowsSkipped.Add(ctx, 3)
	metrics.DaysDropped.Add(ctx, 2)
	metrics.RenderDuration.Record(ctx, 0.25)
	metrics.ImageBytesWritten.Add(ctx, 1024)

	found := collect(t, reader)
	for _, name := range []string{
		"calheat_cycles_total",
		"calheat_rows_aggregated_total",
		"calheat_rows_skipped_total",
		"calheat_days_dropped_total",
		"calheat_render_duration_seconds",
		"calheat_image_bytes_written_total",
	} {
		assert.Contains(t, found, name)
	}

	sum, ok := found["calheat_rows_aggregated_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(42), sum.DataPoints[0].Value)
}

// TestHTTPMetrics tests the HTTP server instruments
func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	metrics, err := CreateHTTPMetrics(meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.ActiveRequests.Add(ctx, 1)
	metrics.RequestsTotal.Add(ctx, 1)
	metrics.RequestDuration.Record(ctx, 0.01)
	metrics.ActiveRequests.Add(ctx, -1)

	found := collect(t, reader)
	active, ok := found["calheat_http_active_requests"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(0), active.DataPoints[0].Value)
	assert.Contains(t, found, "calheat_http_requests_total")
	assert.Contains(t, found, "calheat_http_request_duration_seconds")
}

// TestPrometheusEndpoint tests that recorded metrics are scraped
func TestPrometheusEndpoint(t *testing.T) {
	providers, err := InitializeOTel(config.TelemetryConfig{MetricExporter: "prometheus"}, testLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateHeatmapMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.CyclesTotal.Add(context.Background(), 1)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "calheat_cycles_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
