package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const yamlConfig = `
simulation:
  period_minutes: 60
  series_path: /data/series.csv
battery:
  capacity_kwh: 200
  charge_rate_kw: 80
  discharge_rate_kw: 80
dispatch:
  battery_dispatch: convex_LV
  n_look_ahead_periods: 48
mqtt:
  enabled: true
  broker: tcp://localhost:1883
`

func TestLoad_Yaml(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", yamlConfig))
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.Simulation.Period())
	assert.Equal(t, "/data/series.csv", cfg.Simulation.SeriesPath)
	assert.Equal(t, 200.0, cfg.Battery.CapacityKWh)
	assert.Equal(t, "convex_LV", cfg.Dispatch["battery_dispatch"])
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "hybrid/dispatch/commit", cfg.MQTT.Topic)
}

func TestLoad_BatteryDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", `
simulation:
  series_path: /data/series.csv
battery:
  capacity_kwh: 100
  charge_rate_kw: 50
  discharge_rate_kw: 50
`))
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Simulation.PeriodMinutes)
	assert.Equal(t, 0.9, cfg.Battery.MaxSoC)
	assert.Equal(t, 0.1, cfg.Battery.MinSoC)
	assert.Equal(t, 0.95, cfg.Battery.ChargeEfficiency)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HS_SIMULATION__PERIOD_MINUTES", "30")
	t.Setenv("HS_BATTERY__CAPACITY_KWH", "500")

	cfg, err := Load(writeConfig(t, "config.yaml", yamlConfig))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Simulation.Period())
	assert.Equal(t, 500.0, cfg.Battery.CapacityKWh)
}

func TestLoad_MissingSeriesPath(t *testing.T) {
	_, err := Load(writeConfig(t, "config.yaml", `
simulation:
  period_minutes: 60
battery:
  capacity_kwh: 100
  charge_rate_kw: 50
  discharge_rate_kw: 50
`))
	assert.ErrorContains(t, err, "series_path")
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", "x = 1"))
	assert.ErrorContains(t, err, "unsupported config format")
}
