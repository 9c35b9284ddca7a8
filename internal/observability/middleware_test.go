package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	contextutils "wordgames/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracedRouter(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	router := gin.New()
	router.Use(otelgin.Middleware("test-service", otelgin.WithTracerProvider(tp)))
	router.Use(ErrorSpanMiddleware())
	return router, recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestErrorSpanMiddleware_SuccessLeavesSpanUnset(t *testing.T) {
	router, recorder := setupTracedRouter(t)
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestErrorSpanMiddleware_RecordsAppError(t *testing.T) {
	router, recorder := setupTracedRouter(t)
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(contextutils.ErrUnknownGame)
		c.Status(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	code, ok := spanAttr(spans[0], "error.code")
	require.True(t, ok)
	assert.Equal(t, string(contextutils.ErrorCodeUnknownGame), code.AsString())

	severity, ok := spanAttr(spans[0], "error.severity")
	require.True(t, ok)
	assert.Equal(t, "info", severity.AsString())
}

func TestErrorSpanMiddleware_ServerErrorWithoutAppError(t *testing.T) {
	router, recorder := setupTracedRouter(t)
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	severity, ok := spanAttr(spans[0], "error.severity")
	require.True(t, ok)
	assert.Equal(t, "error", severity.AsString())
}
