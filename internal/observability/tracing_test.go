package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/rockymount114/City-Workflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() { Tracer = prev })
	return rec
}

func TestEndSpan(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
		wantCode   string
	}{
		{"success", nil, codes.Unset, ""},
		{"validation", models.NewValidationError("bad"), codes.Unset, models.CodeValidation},
		{"conflict", models.NewConflictError("Request is already decided"), codes.Unset, models.CodeConflict},
		{"internal", models.NewInternalError(errors.New("db down")), codes.Error, ""},
		{"plain error", errors.New("boom"), codes.Error, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := recordSpans(t)
			_, span := StartServiceSpan(context.Background(), "approvals", "Act")
			EndSpan(span, tt.err)

			ended := rec.Ended()
			require.Len(t, ended, 1)
			assert.Equal(t, "approvals.Act", ended[0].Name())
			assert.Equal(t, tt.wantStatus, ended[0].Status().Code)

			var code string
			for _, kv := range ended[0].Attributes() {
				if kv.Key == "error.code" {
					code = kv.Value.AsString()
				}
			}
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestInitTracing(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = InitTracing(TracingConfig{Enabled: true, Exporter: "carrier-pigeon"})
	assert.Error(t, err)
}
