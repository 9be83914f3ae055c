package metrics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/internal/metrics"
)

func TestNewMetricProvider_Prometheus(t *testing.T) {
	mp, err := metrics.NewMetricProvider(context.Background(),
		metrics.WithServiceName("otoken-adapter"),
		metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
	)
	require.NoError(t, err)

	counter, err := mp.Meter("test").Int64Counter("adapter_test_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestNewMetricProvider_UnknownProvider(t *testing.T) {
	_, err := metrics.NewMetricProvider(context.Background(),
		metrics.WithProviderConfig(metrics.ProviderCfg{Provider: "statsd"}),
	)
	assert.Error(t, err)
}
