package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	serviceNamespace = "zaymazone"
	serviceVersion   = "0.1.0"
)

// Component is the process a binary runs as. API and worker share one
// service name and are told apart by this attribute.
type Component string

const (
	ComponentAPI         Component = "api"
	ComponentSalesWorker Component = "sales-worker"
)

var componentKey = attribute.Key("zaymazone.component")

// Service describes the running process for traces and metrics.
type Service struct {
	Name        string
	Component   Component
	Environment string
}

func (s Service) resource() *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(s.Name),
		semconv.ServiceNamespace(serviceNamespace),
		semconv.ServiceVersion(serviceVersion),
		componentKey.String(string(s.Component)),
	}
	if s.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(s.Environment))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

// InitTracerProvider exports spans over OTLP/gRPC to endpoint and installs the
// W3C propagators. Root spans are kept with probability sampleRatio; child
// spans follow their parent, so an order traced by the API stays traced in
// the worker.
func InitTracerProvider(ctx context.Context, svc Service, endpoint string, sampleRatio float64) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(svc.resource()),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(sampleRatio))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// WithHTTPRoute tags the request span with the matched mux pattern.
// otelhttp wraps the mux and never sees r.Pattern itself.
func WithHTTPRoute(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Pattern != "" {
			oteltrace.SpanFromContext(r.Context()).SetAttributes(semconv.HTTPRoute(r.Pattern))
		}
		h(w, r)
	}
}
