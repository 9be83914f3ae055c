package monolith_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/internal/config"
	"github.com/fd1az/otoken-adapter/internal/di"
	"github.com/fd1az/otoken-adapter/internal/health"
	"github.com/fd1az/otoken-adapter/internal/logger"
	"github.com/fd1az/otoken-adapter/internal/monolith"
)

type recordingModule struct {
	registered bool
	started    bool
}

func (m *recordingModule) RegisterServices(c di.Container) error {
	m.registered = true
	return nil
}

func (m *recordingModule) Startup(ctx context.Context, mono monolith.Monolith) error {
	m.started = true
	return nil
}

func TestNew_MemoryBackendSkipsNode(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Backend: config.BackendMemory}}
	hs := health.NewServer(0, "test")

	mono, err := monolith.New(context.Background(), cfg, logger.NewNop(), hs)
	require.NoError(t, err)
	defer mono.Close()

	assert.Nil(t, mono.EthClient())
	assert.Same(t, hs, mono.Health())
	assert.Same(t, cfg, mono.Services().Get("config"))
	assert.NotNil(t, mono.AssetRegistry())

	mod := &recordingModule{}
	require.NoError(t, mono.RegisterModules(mod))
	require.NoError(t, mono.StartModules(context.Background(), mod))
	assert.True(t, mod.registered)
	assert.True(t, mod.started)
}
