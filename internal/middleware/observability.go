package middleware

import (
	"errors"
	"strconv"
	"time"

	"go-pos-engine/internal/logging"
	"go-pos-engine/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// Observability combines:
// - X-Request-ID generation + echo
// - a request span
// - request-scoped logger in the fiber user context
// - HTTP metrics with route templates as labels
func Observability(base *zap.Logger, m *metrics.Metrics) fiber.Handler {
	if base == nil {
		base = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	tracer := otel.Tracer("go-pos-engine/http")

	return func(c *fiber.Ctx) error {
		rid := c.Get(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDHeader, rid)

		ctx, span := tracer.Start(c.UserContext(), "http.request", trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		fields := []zap.Field{zap.String("request_id", rid)}
		if sc := span.SpanContext(); sc.IsValid() {
			fields = append(fields,
				zap.String("trace_id", sc.TraceID().String()),
				zap.String("span_id", sc.SpanID().String()),
			)
		}
		reqLogger := base.With(fields...)
		c.SetUserContext(logging.ContextWithLogger(ctx, reqLogger))

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		route := c.Route().Path
		method := c.Method()
		span.SetName(method + " " + route)
		span.SetAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		if status >= 500 {
			span.SetStatus(codes.Error, strconv.Itoa(status))
		}

		m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.HTTPReqDurations.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

		if status >= 500 {
			reqLogger.Error("request failed", zap.String("method", method), zap.String("route", route), zap.Int("status", status), zap.Error(err))
		} else {
			reqLogger.Debug("request handled", zap.String("method", method), zap.String("route", route), zap.Int("status", status))
		}
		return err
	}
}
