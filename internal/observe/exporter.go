package observe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/lepinkainen/tankobon"

// Setup holds a configured meter provider and, for the prometheus exporter,
// the HTTP handler that serves the scrape endpoint.
type Setup struct {
	Metrics  Metrics
	Handler  http.Handler
	provider *sdkmetric.MeterProvider
}

// Shutdown flushes and stops the meter provider.
func (s *Setup) Shutdown(ctx context.Context) error {
	if s.provider == nil {
		return nil
	}
	return s.provider.Shutdown(ctx)
}

// NewSetup builds metrics for the named exporter.
// Supported exporters: prometheus, stdout, none
func NewSetup(exporter string) (*Setup, error) {
	switch exporter {
	case "prometheus":
		registry := prometheus.NewRegistry()
		exp, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		return newSetup(exp, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		return newSetup(sdkmetric.NewPeriodicReader(exp), nil)

	case "none", "":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
		if err != nil {
			return nil, err
		}
		return newSetup(sdkmetric.NewPeriodicReader(exp), nil)

	default:
		return nil, fmt.Errorf("unknown metrics exporter: %q", exporter)
	}
}

// NewSetupWithReader wires metrics to an explicit reader (used by tests).
func NewSetupWithReader(reader sdkmetric.Reader) (*Setup, error) {
	return newSetup(reader, nil)
}

func newSetup(reader sdkmetric.Reader, handler http.Handler) (*Setup, error) {
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := New(provider.Meter(meterName))
	if err != nil {
		return nil, err
	}
	return &Setup{Metrics: m, Handler: handler, provider: provider}, nil
}
