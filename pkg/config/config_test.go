package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCfg struct {
	Name   string `mapstructure:"name"`
	Poller struct {
		Symbols  []string `mapstructure:"symbols"`
		Interval string   `mapstructure:"interval"`
	} `mapstructure:"poller"`
	Redis struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"redis"`
}

func TestLoad_FileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
name: md-test
poller:
  symbols: [EURUSD, GBPUSD]
redis:
  host: redis.local
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "md-test.yaml"), yaml, 0o644))

	var cfg testCfg
	v, err := Load(Options{
		Name:     "md-test",
		Paths:    []string{dir},
		Defaults: map[string]interface{}{"redis.port": 6379, "poller.interval": "1s"},
	}, &cfg)
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "md-test", cfg.Name)
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, cfg.Poller.Symbols)
	assert.Equal(t, "redis.local", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, "1s", cfg.Poller.Interval)
}

func TestLoad_MissingFile_EnvOverride(t *testing.T) {
	t.Setenv("MD_ENV_REDIS_HOST", "10.0.0.7")

	var cfg testCfg
	_, err := Load(Options{
		Name:     "md-env",
		Paths:    []string{t.TempDir()},
		Defaults: map[string]interface{}{"redis.host": "localhost", "redis.port": 6379},
	}, &cfg)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.7", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
}

func TestLoad_BrokenFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "md-bad.yaml"), []byte("poller: [unclosed"), 0o644))

	var cfg testCfg
	_, err := Load(Options{Name: "md-bad", Paths: []string{dir}}, &cfg)
	assert.Error(t, err)
}
