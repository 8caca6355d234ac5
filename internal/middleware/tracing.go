package middleware

import (
	"context"

	"inkwell/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens a server span per request and exposes its trace id
// to the logger and to clients through X-Trace-ID.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))

		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.OriginalURL()),
				attribute.String("http.client_ip", c.IP()),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(context.WithValue(ctx, TraceIDKey, traceID))

		err := c.Next()

		// the matched route is only known after routing
		span.SetName(c.Method() + " " + c.Route().Path)
		status := c.Response().StatusCode()
		span.SetAttributes(
			attribute.String("http.route", c.Route().Path),
			attribute.Int("http.status_code", status),
		)
		if uid, ok := c.Locals("userID").(uint); ok {
			span.SetAttributes(attribute.Int64("user.id", int64(uid)))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, "server error")
		}

		return err
	}
}
