package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/recovery/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// routeOperations names the case operations behind each mutating route.
var routeOperations = map[string]string{
	"POST /api/cases":                          "case.create",
	"POST /api/cases/:id/close":                "case.close",
	"POST /api/cases/:id/payments":             "payment.apply",
	"POST /api/cases/:id/negotiation":          "negotiation.start",
	"POST /api/cases/:id/negotiation/decision": "negotiation.decide",
	"POST /api/cases/:id/prediction":           "prediction.record",
	"POST /api/ingestion/runs":                 "ingestion.run",
	"POST /api/reclassifications":              "risk.reclassify",
}

// GinMiddleware instruments inbound HTTP requests. Case routes carry the
// case id, profile routes the customer id.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("recovery/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		ctx, span := tracer.Start(ctx, "HTTP "+strings.ToUpper(c.Request.Method), trace.WithSpanKind(trace.SpanKindServer))

		requestID := obscontext.RequestIDFromContext(ctx)
		if requestID != "" {
			member, err := baggage.NewMember("request_id", requestID)
			if err == nil {
				bag, bagErr := baggage.New(member)
				if bagErr == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + strings.ToUpper(c.Request.Method) + " " + route)
		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		attrs = append(attrs, domainAttributes(c, route)...)
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
		span.End()
	}
}

func domainAttributes(c *gin.Context, route string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if op, ok := routeOperations[strings.ToUpper(c.Request.Method)+" "+route]; ok {
		attrs = append(attrs, attribute.String("recovery.operation", op))
	}
	id := strings.TrimSpace(c.Param("id"))
	switch {
	case id == "":
	case strings.HasPrefix(route, "/api/customers/"):
		attrs = append(attrs, attribute.String("customer.id", id))
	case strings.HasPrefix(route, "/api/cases/"):
		attrs = append(attrs, attribute.String("case.id", id))
	}
	return attrs
}
