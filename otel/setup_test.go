package otel_test

import (
	"context"
	"testing"
	"time"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/petal-labs/integrald"
	integraldotel "github.com/petal-labs/integrald/otel"
)

func resetGlobals(t *testing.T) {
	t.Cleanup(func() {
		otelapi.SetTracerProvider(noop.NewTracerProvider())
		otelapi.SetMeterProvider(metricnoop.NewMeterProvider())
	})
}

func TestSetupWithoutEndpoint(t *testing.T) {
	resetGlobals(t)
	reader := metric.NewManualReader()

	providers, err := integraldotel.Setup(context.Background(), integraldotel.Config{
		MetricReaders: []metric.Reader{reader},
	})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			t.Fatalf("Shutdown() error = %v", err)
		}
	}()

	if otelapi.GetTracerProvider() != providers.Tracer {
		t.Fatal("global tracer provider not installed")
	}

	observer, err := providers.NewObserver()
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	observer.ObserveIntegration(context.Background(), integrald.Observation{Expression: "x", Upper: 1})

	rm := collectMetrics(t, reader)
	if findMetric(rm, "integrald.integrations") == nil {
		t.Fatal("integrald.integrations metric not found")
	}
}

func TestSetupWithEndpoint(t *testing.T) {
	resetGlobals(t)

	providers, err := integraldotel.Setup(context.Background(), integraldotel.Config{
		Endpoint:    "127.0.0.1:4318",
		ServiceName: "integrald-test",
		Insecure:    true,
	})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Nothing was recorded, so shutdown has nothing to send.
	if err := providers.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestShutdownNilProviders(t *testing.T) {
	var p *integraldotel.Providers
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}
