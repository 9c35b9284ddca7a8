package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				sums[m.Name] += dp.Value
			}
		}
	}
	return sums
}

func TestGameMetrics_Counters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewGameMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.QuestionsServed(ctx, "scribe", 10)
	m.QuestionsServed(ctx, "speaker", 4)
	m.GameFinished(ctx, "scribe")
	m.UnresolvedWords(ctx, "scribe", 2)
	m.UnresolvedWords(ctx, "scribe", 0)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(14), sums["wordgames.questions.served"])
	assert.Equal(t, int64(1), sums["wordgames.games.finished"])
	assert.Equal(t, int64(2), sums["wordgames.mastery.unresolved_words"])
}

func TestGameMetrics_NilIsSafe(t *testing.T) {
	var m *GameMetrics
	assert.NotPanics(t, func() {
		m.QuestionsServed(context.Background(), "scribe", 1)
		m.GameFinished(context.Background(), "scribe")
		m.UnresolvedWords(context.Background(), "scribe", 1)
	})
	assert.NotNil(t, DefaultGameMetrics())
}
