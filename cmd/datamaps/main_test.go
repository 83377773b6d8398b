package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/OCAP2/datamaps/internal/config"
	"github.com/OCAP2/datamaps/internal/dismissal"
	"github.com/OCAP2/datamaps/internal/storage/memory"
	"github.com/OCAP2/datamaps/pkg/core"
)

const mapDefinition = `id: world
pageName: "Map:World"
groups:
  goblin: {name: Goblin, fillColor: "#0f0"}
  ore: {name: Ore, pinColor: "#888", collectible: globalGroup}
  chest: {name: Chest, markerIcon: chest.png, collectible: individual}
backgrounds:
  - {name: Day, image: day.png}
  - {name: Night, image: night.png, layer: night}
`

func writeMap(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.yaml")
	require.NoError(t, os.WriteFile(path, []byte(mapDefinition), 0o644))
	return path
}

func withDefaults(t *testing.T) {
	t.Helper()
	viper.Reset()
	config.SetDefaults()
	t.Cleanup(viper.Reset)
}

func TestRender_Formats(t *testing.T) {
	v := dismissResult{Map: "world", Target: "#ore", Scope: "global", Dismissed: true, Local: []string{}, Global: []string{"#ore"}}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "json", v))
	assert.Contains(t, buf.String(), `"target": "#ore"`)

	buf.Reset()
	require.NoError(t, render(&buf, "yaml", v))
	var back dismissResult
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, v, back)

	buf.Reset()
	require.NoError(t, render(&buf, "text", v))
	assert.Contains(t, buf.String(), "#ore dismissed in global scope")
	assert.Contains(t, buf.String(), "global (datamaps.global): #ore")

	assert.Error(t, render(&buf, "xml", v))
}

func TestToggle(t *testing.T) {
	mapCfg, err := config.LoadMapConfig(writeMap(t))
	require.NoError(t, err)
	scopes, err := dismissal.OpenScopes(memory.New(config.MemoryConfig{}), mapCfg.ID)
	require.NoError(t, err)

	var res dismissResult
	require.NoError(t, toggle(mapCfg, scopes, "#ore", &res))
	assert.True(t, res.Dismissed)
	assert.Equal(t, "global", res.Scope)
	assert.True(t, scopes.Global.IsDismissed("ore", true))

	id := core.MarkerID("chest", core.Instance{Lat: 1, Lon: 2})
	require.NoError(t, toggle(mapCfg, scopes, id, &res))
	assert.Equal(t, "local", res.Scope)
	assert.True(t, scopes.Local.IsDismissed(id, false))

	require.NoError(t, toggle(mapCfg, scopes, id, &res))
	assert.False(t, res.Dismissed)

	assert.Error(t, toggle(mapCfg, scopes, "#goblin", &res), "not collectible")
	assert.Error(t, toggle(mapCfg, scopes, "#dragon", &res))
}

func TestRunStream(t *testing.T) {
	withDefaults(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Map:World", r.URL.Query().Get("title"))
		fmt.Fprint(w, `{"query": {"markers": {
			"goblin": [[10, 20, {"label": "Snarl"}], [30, 40]],
			"ore bg:night": [[50, 50]],
			"chest": [[60, 60, {"label": "Golden chest"}]]
		}}}`)
	}))
	defer srv.Close()
	viper.Set("api.baseUrl", srv.URL)

	summary, err := runStream(context.Background(), writeMap(t), &streamOptions{
		background: -1, search: "golden", limit: 5, timeout: 5 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, "world", summary.Map)
	assert.Equal(t, 4, summary.Markers)
	assert.Equal(t, 3, summary.Visible)
	assert.Equal(t, "Day", summary.Background)
	assert.Equal(t, map[string]int{"Goblin": 2, "Chest": 1}, summary.Groups)
	assert.Equal(t, []float64{-150, -200, 250, 300}, summary.Bounds)
	require.NotEmpty(t, summary.Search)
	assert.Equal(t, "Golden chest", summary.Search[0].Label)
	assert.Equal(t, "60.00, 60.00", summary.Search[0].Coords)

	var buf bytes.Buffer
	require.NoError(t, summary.renderText(&buf))
	assert.Contains(t, buf.String(), "4 created, 3 visible")
}

func TestRunStream_Background(t *testing.T) {
	withDefaults(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query": {"markers": {"ore bg:night": [[50, 50]], "goblin": [[1, 1]]}}}`)
	}))
	defer srv.Close()
	viper.Set("api.baseUrl", srv.URL)

	summary, err := runStream(context.Background(), writeMap(t), &streamOptions{background: 1, timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "Night", summary.Background)
	assert.Equal(t, 2, summary.Visible)
	assert.Empty(t, summary.Search)
}

func TestRunStream_BackendError(t *testing.T) {
	withDefaults(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"code": "missingtitle", "info": "The page does not exist"}}`)
	}))
	defer srv.Close()
	viper.Set("api.baseUrl", srv.URL)

	_, err := runStream(context.Background(), writeMap(t), &streamOptions{background: -1, timeout: 5 * time.Second})
	assert.ErrorContains(t, err, "missingtitle")
}

func TestServeRelay_StopsWithContext(t *testing.T) {
	withDefaults(t)
	cfg := config.GetRelayConfig()
	cfg.Listen = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveRelay(ctx, cfg) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop")
	}
}
