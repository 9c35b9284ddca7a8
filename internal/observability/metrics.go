package observability

import (
	"context"
	"sync"

	"wordgames/internal/config"
	contextutils "wordgames/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics initializes an OTLP-exporting meter provider
func InitMetrics(cfg *config.OpenTelemetryConfig) (result0 *metric.MeterProvider, err error) {
	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var exporter metric.Exporter
	switch cfg.Protocol {
	case "grpc", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithHeaders(cfg.Headers)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp grpc metric exporter: %w", err)
		}
	case "http":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithHeaders(cfg.Headers)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp http metric exporter: %w", err)
		}
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unsupported otel protocol: %s", cfg.Protocol)
	}

	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter)),
		metric.WithResource(res),
	)
	return mp, nil
}

// GameMetrics holds the counters recorded by the game engine
type GameMetrics struct {
	questionsServed otelmetric.Int64Counter
	gamesFinished   otelmetric.Int64Counter
	unresolvedWords otelmetric.Int64Counter
}

var (
	gameMetrics     *GameMetrics
	gameMetricsOnce sync.Once
)

// NewGameMetrics creates the game counters on the given meter provider
func NewGameMetrics(mp otelmetric.MeterProvider) (*GameMetrics, error) {
	meter := mp.Meter("wordgames/games")

	served, err := meter.Int64Counter("wordgames.questions.served",
		otelmetric.WithDescription("Questions returned by play requests"))
	if err != nil {
		return nil, err
	}
	finished, err := meter.Int64Counter("wordgames.games.finished",
		otelmetric.WithDescription("Finished games ingested"))
	if err != nil {
		return nil, err
	}
	unresolved, err := meter.Int64Counter("wordgames.mastery.unresolved_words",
		otelmetric.WithDescription("Answered words missing from the vocabulary"))
	if err != nil {
		return nil, err
	}

	return &GameMetrics{questionsServed: served, gamesFinished: finished, unresolvedWords: unresolved}, nil
}

// DefaultGameMetrics returns counters bound to the global meter provider
func DefaultGameMetrics() *GameMetrics {
	gameMetricsOnce.Do(func() {
		m, err := NewGameMetrics(otel.GetMeterProvider())
		if err != nil {
			m = &GameMetrics{}
		}
		gameMetrics = m
	})
	return gameMetrics
}

// QuestionsServed records n questions served for a game kind
func (m *GameMetrics) QuestionsServed(ctx context.Context, kind string, n int) {
	if m == nil || m.questionsServed == nil {
		return
	}
	m.questionsServed.Add(ctx, int64(n), otelmetric.WithAttributes(attribute.String("game.kind", kind)))
}

// GameFinished records one finished game for a game kind
func (m *GameMetrics) GameFinished(ctx context.Context, kind string) {
	if m == nil || m.gamesFinished == nil {
		return
	}
	m.gamesFinished.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("game.kind", kind)))
}

// UnresolvedWords records words that could not be found in the vocabulary
func (m *GameMetrics) UnresolvedWords(ctx context.Context, kind string, n int) {
	if m == nil || m.unresolvedWords == nil || n == 0 {
		return
	}
	m.unresolvedWords.Add(ctx, int64(n), otelmetric.WithAttributes(attribute.String("game.kind", kind)))
}
