package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/datamaps/pkg/core"
)

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"logLevel": "debug",
		"api": { "baseUrl": "https://wiki.example/w", "retryCount": 4 },
		"storage": { "type": "sqlite", "sqlite": { "path": "/tmp/prefs.db" } }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "datamaps.cfg.json"), []byte(cfg), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))

	backend := GetBackendConfig()
	assert.Equal(t, "https://wiki.example/w", backend.BaseURL)
	assert.Equal(t, 4, backend.RetryCount)
	assert.Equal(t, 30*time.Second, backend.Timeout)

	storage := GetStorageConfig()
	assert.Equal(t, "sqlite", storage.Type)
	assert.Equal(t, "/tmp/prefs.db", storage.SQLite.Path)
	assert.Equal(t, 3*time.Minute, storage.SQLite.DumpInterval)
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "datamaps.cfg.json"), []byte(`{}`), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./datamapslogs", viper.GetString("logsDir"))
	assert.Equal(t, 2, GetBackendConfig().RetryCount)
	assert.Equal(t, "memory", GetStorageConfig().Type)
	assert.Equal(t, "disable", GetStorageConfig().Postgres.SSLMode)
	assert.False(t, GetInfluxConfig().Enabled)
	assert.Equal(t, "datamaps", GetInfluxConfig().Bucket)
	assert.False(t, GetLoggingConfig().GraylogEnabled)
	assert.Equal(t, "localhost:12201", GetLoggingConfig().GraylogAddress)
	assert.Equal(t, ":8090", GetRelayConfig().Listen)
	assert.Equal(t, "/relay", GetRelayConfig().Path)
	assert.Equal(t, -75, GetScoreThreshold())
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.True(t, GetBool("testBool"))
}

func TestLoadMapConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.json")
	doc := `{
		"pageName": "Map:World",
		"crs": [[0, 0], [1000, 1000]],
		"groups": { "goblin": { "name": "Goblin", "fillColor": "#0f0", "size": 8, "collectible": "individual" } },
		"layers": { "cave": { "name": "Cave", "markerIcon": "cave.png" } },
		"backgrounds": [ { "name": "Surface", "image": "surface.png" } ],
		"flags": { "search": true, "showCoordinates": true }
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadMapConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Map:World", cfg.ID, "id falls back to page name")
	assert.True(t, cfg.Flags.Search)
	assert.True(t, cfg.Flags.ShowCoordinates)
	assert.False(t, cfg.Flags.HideLegend)
	assert.Equal(t, core.Dimensions{W: 8, H: 8}, cfg.Groups["goblin"].Size)
	assert.Equal(t, "cave.png", cfg.Layers["cave"].MarkerIcon)
	require.Len(t, cfg.Backgrounds, 1)
	assert.Equal(t, "0", cfg.Backgrounds[0].Layer)
}

func TestLoadMapConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.yaml")
	doc := `
id: world
groups:
  chest:
    name: Chest
    markerIcon: chest.png
    size: [24, 24]
backgrounds:
  - name: Day
    layer: day
  - name: Night
flags:
  search: true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadMapConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "world", cfg.ID)
	assert.Equal(t, "chest.png", cfg.Groups["chest"].MarkerIcon)
	assert.Equal(t, "day", cfg.Backgrounds[0].Layer)
	assert.Equal(t, "1", cfg.Backgrounds[1].Layer)
	assert.Equal(t, core.DefaultCRS, cfg.EffectiveCRS())
}

func TestLoadMapConfig_Errors(t *testing.T) {
	_, err := LoadMapConfig("/nonexistent/world.json")
	assert.Error(t, err)

	_, err = ParseMapConfig([]byte(`{}`), ".json")
	assert.Error(t, err, "missing id must be rejected")

	_, err = ParseMapConfig([]byte(`id = 1`), ".toml")
	assert.Error(t, err)

	_, err = ParseMapConfig([]byte(`{"id": "x", "crs": [[0]]}`), ".json")
	assert.Error(t, err)
}
