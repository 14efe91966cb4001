package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"HTTP_ADDR", "SEED_RESIDENTS", "DEVICE_TRANSPORT",
		"SIM_CONNECT_DELAY_MS", "SIM_FETCH_DELAY_MS", "SIM_TICK_INTERVAL_MS",
		"COUNT_DUPLICATE_WINDOW_MIN", "COUNT_SCHEDULE_POLL_SEC",
		"SCAN_STREAM_ENABLED", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 200, cfg.Seed.Residents)
	assert.Equal(t, "sim", cfg.Device.Transport)
	assert.Equal(t, 1500*time.Millisecond, cfg.Device.Sim.ConnectDelay)
	assert.Equal(t, 2000*time.Millisecond, cfg.Device.Sim.FetchDelay)
	assert.Equal(t, 3000*time.Millisecond, cfg.Device.Sim.TickInterval)
	assert.Equal(t, 60*time.Minute, cfg.Count.DuplicateWindow)
	assert.Equal(t, 10*time.Second, cfg.Count.SchedulePoll)
	assert.False(t, cfg.Stream.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SEED_RESIDENTS", "50")
	t.Setenv("DEVICE_TRANSPORT", "mqtt")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("SIM_CONNECT_DELAY_MS", "10")
	t.Setenv("COUNT_DUPLICATE_WINDOW_MIN", "5")
	t.Setenv("SCAN_STREAM_ENABLED", "true")
	t.Setenv("SCAN_STREAM_NAME", "scans")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 50, cfg.Seed.Residents)
	assert.Equal(t, "mqtt", cfg.Device.Transport)
	assert.Equal(t, "tcp://broker:1883", cfg.Device.MQTT.Broker)
	assert.Equal(t, 10*time.Millisecond, cfg.Device.Sim.ConnectDelay)
	assert.Equal(t, 5*time.Minute, cfg.Count.DuplicateWindow)
	assert.True(t, cfg.Stream.Enabled)
	assert.Equal(t, "scans", cfg.Stream.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidMillisFallsBack(t *testing.T) {
	t.Setenv("SIM_TICK_INTERVAL_MS", "-5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000*time.Millisecond, cfg.Device.Sim.TickInterval)
}
