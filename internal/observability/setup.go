package observability

import (
	"context"

	"wordgames/internal/config"
	contextutils "wordgames/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SetupObservability initializes tracing, metrics, and logging for a service.
// Disabled signals come back nil, except the logger which falls back to a no-op.
func SetupObservability(cfg *config.OpenTelemetryConfig, serviceName string, logLevel string) (result0 *sdktrace.TracerProvider, result1 *metric.MeterProvider, result2 *Logger, err error) {
	if serviceName != "" {
		cfg.ServiceName = serviceName
	}

	logger := NewLoggerWithLevel(cfg, ParseLevel(logLevel))

	var tp *sdktrace.TracerProvider
	if cfg.EnableTracing {
		tp, err = InitTracing(cfg)
		if err != nil {
			return nil, nil, nil, contextutils.WrapError(err, "failed to initialize tracing")
		}
		otel.SetTracerProvider(tp)
		InitGlobalTracer()
		logger.Info(context.Background(), "Tracing enabled", map[string]interface{}{"service_name": cfg.ServiceName, "protocol": cfg.Protocol})
	}

	var mp *metric.MeterProvider
	if cfg.EnableMetrics {
		mp, err = InitMetrics(cfg)
		if err != nil {
			return nil, nil, nil, contextutils.WrapError(err, "failed to initialize metrics")
		}
		otel.SetMeterProvider(mp)
		logger.Info(context.Background(), "Metrics enabled", map[string]interface{}{"service_name": cfg.ServiceName})
	}

	return tp, mp, logger, nil
}
