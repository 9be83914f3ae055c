package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/business/options/app"
	"github.com/fd1az/otoken-adapter/internal/asset"
)

func TestParseZeroProfitPolicy(t *testing.T) {
	p, err := app.ParseZeroProfitPolicy("")
	require.NoError(t, err)
	assert.Equal(t, app.ZeroProfitRevert, p)

	p, err = app.ParseZeroProfitPolicy("NOOP")
	require.NoError(t, err)
	assert.Equal(t, app.ZeroProfitNoop, p)

	_, err = app.ParseZeroProfitPolicy("ignore")
	assert.Error(t, err)
}

func TestParseRounding(t *testing.T) {
	r, err := app.ParseRounding("floor")
	require.NoError(t, err)
	assert.Equal(t, asset.RoundDown, r)

	r, err = app.ParseRounding("half_up")
	require.NoError(t, err)
	assert.Equal(t, asset.RoundHalfUp, r)

	_, err = app.ParseRounding("ceil")
	assert.Error(t, err)
}

func TestNewGammaAdapter_RequiresDependencies(t *testing.T) {
	_, err := app.NewGammaAdapter(app.Dependencies{}, app.Settings{})
	require.Error(t, err)
}
