package instrumentation

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestProvider(t *testing.T, config Config) *Provider {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	provider, err := NewProvider(ctx, config)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider
}

func TestNewProvider_Disabled(t *testing.T) {
	provider := newTestProvider(t, Config{ServiceName: "test-service", Enabled: false})

	if provider.Enabled() {
		t.Error("expected provider to be disabled")
	}
	if provider.Metrics() == nil {
		t.Error("expected metrics to be non-nil even when disabled")
	}
	if provider.MetricsHandler() != nil {
		t.Error("expected no metrics handler when disabled")
	}
	if provider.Tracer("test") == nil {
		t.Error("expected no-op tracer")
	}

	// Recording on the disabled recorder is a no-op.
	provider.Metrics().RecordOAuthAuth(context.Background(), OAuthResultSuccess)
}

func TestNewProvider_PrometheusExporter(t *testing.T) {
	provider := newTestProvider(t, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	})

	if !provider.Enabled() {
		t.Fatal("expected provider to be enabled")
	}

	handler := provider.MetricsHandler()
	if handler == nil {
		t.Fatal("expected metrics handler for prometheus exporter")
	}

	provider.Metrics().RecordOAuthAuth(context.Background(), OAuthResultSuccess)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(string(body), "oauth_auth_total") {
		t.Errorf("expected oauth_auth_total in scrape output")
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("expected Go runtime collector in scrape output")
	}
}

func TestNewProvider_RegistriesAreIndependent(t *testing.T) {
	config := Config{ServiceName: "test-service", Enabled: true, MetricsExporter: ExporterPrometheus}

	// A second provider must not collide with the first one's registrations.
	newTestProvider(t, config)
	newTestProvider(t, config)
}

func TestNewProvider_DefaultsExporters(t *testing.T) {
	provider := newTestProvider(t, Config{ServiceName: "test-service", Enabled: true})
	if provider.MetricsHandler() == nil {
		t.Error("expected prometheus exporter when none is configured")
	}
}

func TestNewProvider_StdoutExporter(t *testing.T) {
	provider := newTestProvider(t, Config{
		ServiceName:     "test-service",
		Enabled:         true,
		MetricsExporter: ExporterStdout,
		TracingExporter: ExporterStdout,
	})

	if provider.MetricsHandler() != nil {
		t.Error("expected no metrics handler for stdout exporter")
	}
}

func TestNewProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{
			name:   "invalid metrics exporter",
			config: Config{Enabled: true, MetricsExporter: "invalid", TracingExporter: ExporterNone},
		},
		{
			name:   "invalid tracing exporter",
			config: Config{Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: "invalid"},
		},
		{
			name:   "otlp tracing without endpoint",
			config: Config{Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: ExporterOTLP},
		},
		{
			name:   "otlp metrics without endpoint",
			config: Config{Enabled: true, MetricsExporter: ExporterOTLP, TracingExporter: ExporterNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.ServiceName = "test-service"
			if _, err := NewProvider(context.Background(), tt.config); err == nil {
				t.Error("expected error")
			}
		})
	}
}
