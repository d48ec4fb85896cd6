package observability

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alijeyrad/medvault_backend/pkg/reqctx"
)

// FiberMiddleware opens a server span per request and records request count
// and latency by route. Routes are labelled by pattern, never by the
// concrete URL, so record and patient ids stay out of span names and metric
// labels.
func FiberMiddleware() fiber.Handler {
	tracer := otel.Tracer(tracerName)
	meter := otel.Meter(tracerName)

	requests, _ := meter.Int64Counter(
		"medvault_http_requests_total",
		metric.WithDescription("HTTP requests by route and status"),
		metric.WithUnit("{request}"),
	)
	latency, _ := meter.Float64Histogram(
		"medvault_http_request_duration_ms",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("ms"),
	)

	return func(c fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.Context(), propagation.HeaderCarrier(c.GetReqHeaders()))

		route := c.Route().Path
		ctx, span := tracer.Start(ctx, c.Method()+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Method()),
				attribute.String("http.route", route),
				attribute.String("user_agent.original", c.Get(fiber.HeaderUserAgent)),
			),
		)
		defer span.End()

		if meta, ok := reqctx.RequestMetaFromContext(c.Context()); ok && meta.RequestID != "" {
			span.SetAttributes(attribute.String("medvault.request_id", meta.RequestID))
		}
		c.SetContext(ctx)

		if sc := span.SpanContext(); sc.HasTraceID() {
			c.Set("X-Trace-Id", sc.TraceID().String())
		}

		start := time.Now()
		err := c.Next()
		elapsed := float64(time.Since(start).Microseconds()) / 1000

		status := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.response.status_code", status))

		labels := metric.WithAttributes(
			attribute.String("method", c.Method()),
			attribute.String("route", route),
			attribute.Int("status", status),
		)
		requests.Add(ctx, 1, labels)
		latency.Record(ctx, elapsed, labels)

		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(status))
			if err != nil {
				span.RecordError(err)
			}
		}
		return err
	}
}
