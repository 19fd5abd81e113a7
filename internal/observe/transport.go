package observe

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Transport is an [http.RoundTripper] that instruments outgoing provider
// calls. Each request:
//
//  1. Runs in a client span named "<kind> <provider>" carrying method, URL
//     path and response status.
//  2. Carries W3C Trace Context headers.
//  3. Is counted in [Metrics.ProviderRequests] with its status class and
//     timed in [Metrics.ProviderDuration].
//  4. Counts in [Metrics.ProviderErrors] on transport failure or a 4xx/5xx
//     response.
type Transport struct {
	// Base performs the request. Default: http.DefaultTransport.
	Base http.RoundTripper

	// Metrics receives the measurements. Default: DefaultMetrics().
	Metrics *Metrics

	// Provider and Kind label the backend (e.g., "deepgram", "stt").
	Provider string
	Kind     string
}

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	m := t.Metrics
	if m == nil {
		m = DefaultMetrics()
	}

	start := time.Now()
	ctx, span := StartSpan(req.Context(), t.Kind+" "+t.Provider,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLPath(req.URL.Path),
			attribute.String("provider", t.Provider),
		),
	)
	defer span.End()

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(ctx)
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := base.RoundTrip(req)

	attrs := metric.WithAttributes(attribute.String("provider", t.Provider), attribute.String("kind", t.Kind))
	m.ProviderDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.RecordProviderRequest(ctx, t.Provider, t.Kind, "error")
		m.RecordProviderError(ctx, t.Provider, t.Kind)
		return nil, err
	}

	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
	m.RecordProviderRequest(ctx, t.Provider, t.Kind, statusClass(resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(resp.StatusCode))
		m.RecordProviderError(ctx, t.Provider, t.Kind)
	}
	return resp, nil
}

// statusClass maps 404 to "4xx".
func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// HTTPClient returns a client with the given timeout whose requests go
// through an instrumented [Transport]. m may be nil.
func HTTPClient(timeout time.Duration, m *Metrics, provider, kind string) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &Transport{Metrics: m, Provider: provider, Kind: kind},
	}
}
