package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestGinMiddlewareTagsCaseOperations(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/api/cases/:id/payments", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/customers/:id/profile", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/cases/1234/payments", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/customers/C-9/profile", nil))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	payment := spanAttributes(spans[0])
	if payment["case.id"].AsString() != "1234" {
		t.Fatalf("expected case.id, got %v", payment["case.id"])
	}
	if payment["recovery.operation"].AsString() != "payment.apply" {
		t.Fatalf("expected payment.apply, got %v", payment["recovery.operation"])
	}
	if spans[0].Name() != "HTTP POST /api/cases/:id/payments" {
		t.Fatalf("unexpected span name %q", spans[0].Name())
	}

	profile := spanAttributes(spans[1])
	if profile["customer.id"].AsString() != "C-9" {
		t.Fatalf("expected customer.id, got %v", profile["customer.id"])
	}
	if _, ok := profile["case.id"]; ok {
		t.Fatalf("profile span must not carry case.id")
	}
	if _, ok := profile["recovery.operation"]; ok {
		t.Fatalf("read routes carry no operation")
	}
}
