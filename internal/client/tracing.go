package client

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"recruit-gateway/internal/telemetry"
)

type routeKey struct{}

func withRoute(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, routeKey{}, name)
}

func routeFrom(ctx context.Context) string {
	name, _ := ctx.Value(routeKey{}).(string)
	return name
}

var _ http.RoundTripper = (*tracingTransport)(nil)

// tracingTransport wraps an http.RoundTripper with a CLIENT span per upstream
// call and injects the trace context into the outgoing headers.
type tracingTransport struct {
	next http.RoundTripper
}

func newTracingTransport(next http.RoundTripper) *tracingTransport {
	return &tracingTransport{next: next}
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	spanName := "upstream"
	route := routeFrom(req.Context())
	if route != "" {
		spanName += "." + route
	}

	ctx, span := otel.Tracer(telemetry.TracerName).Start(req.Context(), spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("server.address", req.URL.Host),
			attribute.String("url.path", req.URL.Path),
			attribute.String("gateway.route", route),
		),
	)
	defer span.End()

	req = req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return resp, nil
}
