package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/optpricer/calibration"
	"github.com/bcdannyboy/optpricer/fdm"
	"github.com/bcdannyboy/optpricer/greeks"
	"github.com/bcdannyboy/optpricer/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "optpricer.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsMatchEngines(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, fdm.DefaultGridConfig(), cfg.GridConfig())
	assert.Equal(t, calibration.DefaultTolerances(), cfg.Tolerances())
	assert.Equal(t, greeks.DefaultBumps(), cfg.Bumps())

	sim := cfg.SimConfig()
	assert.Equal(t, 100000, sim.Paths)
	assert.True(t, sim.Antithetic)
	assert.True(t, sim.ControlVariate)
	assert.Zero(t, sim.Workers)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default().GridConfig(), cfg.GridConfig())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[grid]
space_steps = 200
theta = 1.0

[simulation]
paths = 5000
seed = 99
antithetic = false
control_variate = false

[log]
level = "debug"

[store]
path = "/tmp/runs.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Grid.SpaceSteps)
	assert.Equal(t, 1.0, cfg.Grid.Theta)
	assert.Equal(t, Default().Grid.TimeSteps, cfg.Grid.TimeSteps)

	sim := cfg.SimConfig()
	assert.Equal(t, 5000, sim.Paths)
	assert.Equal(t, uint64(99), sim.Seed)
	assert.False(t, sim.Antithetic)
	assert.False(t, sim.ControlVariate)

	assert.Equal(t, "debug", cfg.LogConfig().Level)
	assert.Equal(t, "/tmp/runs.db", cfg.Store.Path)

	t.Run("directory lookup", func(t *testing.T) {
		cfg, err := Load(filepath.Dir(path))
		require.NoError(t, err)
		assert.Equal(t, 200, cfg.Grid.SpaceSteps)
	})
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "[simulation]\npaths = 5000\n")
	t.Setenv("OPTPRICER_SIMULATION_PATHS", "7000")
	t.Setenv("OPTPRICER_CALIBRATION_MAX_ITERATIONS", "25")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Simulation.Paths)
	assert.Equal(t, 25, cfg.Calibration.MaxIterations)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})

	t.Run("malformed toml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[grid\nspace_steps = "))
		assert.Error(t, err)
	})

	t.Run("invalid grid", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[grid]\ntheta = 0.2\n"))
		assert.ErrorIs(t, err, models.ErrInvalidGridConfig)
	})

	t.Run("invalid simulation", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[simulation]\npaths = 0\n"))
		assert.ErrorIs(t, err, models.ErrInvalidSimConfig)
	})

	t.Run("invalid tolerances", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[calibration]\nlower_vol = 6.0\n"))
		assert.ErrorIs(t, err, models.ErrInvalidTolerances)
	})

	t.Run("invalid bumps", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[greeks]\nspot_relative = 1.5\n"))
		assert.ErrorIs(t, err, models.ErrInvalidBumps)
	})

	t.Run("invalid log level", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[log]\nlevel = \"loud\"\n"))
		assert.Error(t, err)
	})
}
