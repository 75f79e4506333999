// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/seedlab/seedlab/internal/config"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, ServiceName: "seedlab"})
	require.NoError(t, err)
	assert.Nil(t, provider.tp)
	require.NoError(t, provider.Shutdown(context.Background()))

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "carrier-pigeon"})
	require.Error(t, err)
}

func TestNewProvider_HTTPExporter(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "seedlab",
		ExporterType: "http",
		Endpoint:     "localhost:4318",
		SamplingRate: 1,
	})
	require.NoError(t, err)
	require.NotNil(t, p.tp)

	_, span := Tracer("test").Start(context.Background(), "recorded")
	assert.True(t, span.IsRecording())
	span.End()

	_ = p.Shutdown(context.Background())
}

func TestFromConfig(t *testing.T) {
	c := FromConfig(config.TelemetryConfig{Enabled: true, Exporter: "grpc", Endpoint: "otel:4317", SamplingRate: 0.5, Environment: "prod"}, "seedlab", "v1")
	assert.Equal(t, "grpc", c.ExporterType)
	assert.Equal(t, "otel:4317", c.Endpoint)
	assert.Equal(t, "v1", c.ServiceVersion)
	assert.InDelta(t, 0.5, c.SamplingRate, 1e-9)
}

func TestAnalysisAttributes(t *testing.T) {
	attrs := AnalysisAttributes(0, 7, "PMS", "")
	require.Len(t, attrs, 2)
	assert.Equal(t, LotIDKey, string(attrs[1].Key))
}
