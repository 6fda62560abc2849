package observability

import (
	"context"
	"log"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records assessment outcomes through an OpenTelemetry meter
// exported to Prometheus. A zero value is usable and records nothing.
type Observability struct {
	meterProvider      *metric.MeterProvider
	meter              otelmetric.Meter
	assessmentCounter  otelmetric.Int64Counter
	assessmentDuration otelmetric.Float64Histogram
}

// New registers the exporter with the default Prometheus registerer.
func New(serviceName string) *Observability {
	return NewWithRegisterer(serviceName, promclient.DefaultRegisterer)
}

func NewWithRegisterer(serviceName string, reg promclient.Registerer) *Observability {
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	assessmentCounter, _ := meter.Int64Counter(
		"assessments.processed",
		otelmetric.WithDescription("Number of scoring requests by outcome"),
	)

	assessmentDuration, _ := meter.Float64Histogram(
		"assessments.duration",
		otelmetric.WithDescription("Scoring duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:      provider,
		meter:              meter,
		assessmentCounter:  assessmentCounter,
		assessmentDuration: assessmentDuration,
	}
}

// RecordAssessment counts one scoring request and its latency. status is the
// tier on success or the error code on failure.
func (o *Observability) RecordAssessment(ctx context.Context, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("status", status))
	if o.assessmentCounter != nil {
		o.assessmentCounter.Add(ctx, 1, attrs)
	}
	if o.assessmentDuration != nil {
		o.assessmentDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	}
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
