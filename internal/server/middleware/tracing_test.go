package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestTracing_ContinuesRemoteTrace(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	r := gin.New()
	r.Use(Tracing(tp))
	r.GET("/api/reminders", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	parent, span := tp.Tracer("client").Start(context.Background(), "client")
	req := httptest.NewRequest(http.MethodGet, "/api/reminders", nil)
	propagation.TraceContext{}.Inject(parent, propagation.HeaderCarrier(req.Header))
	span.End()

	// The global propagator is a no-op unless SetGlobal ran, so inject it for the server too.
	prev := propagatorForTest(propagation.TraceContext{})
	defer prev()

	r.ServeHTTP(httptest.NewRecorder(), req)

	var server sdktrace.ReadOnlySpan
	for _, s := range rec.Ended() {
		if s.SpanKind() == trace.SpanKindServer {
			server = s
		}
	}
	if server == nil {
		t.Fatal("no server span recorded")
	}
	if server.Name() != "GET /api/reminders" {
		t.Errorf("span name = %q", server.Name())
	}
	if server.Parent().TraceID() != span.SpanContext().TraceID() {
		t.Error("server span did not continue the client trace")
	}
	if server.Status().Code.String() != "Error" {
		t.Errorf("status = %v, want Error for 500", server.Status().Code)
	}
}

func propagatorForTest(p propagation.TextMapPropagator) func() {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(p)
	return func() { otel.SetTextMapPropagator(prev) }
}
