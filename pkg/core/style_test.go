package core

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestResolveStyle_Variants(t *testing.T) {
	pin, err := ResolveStyle("a", GroupConfig{PinColor: "#f00", MarkerIcon: "x.png"})
	require.NoError(t, err)
	assert.Equal(t, PinStyle{Colour: "#f00", Size: Dimensions{W: 32, H: 32}}, pin)

	icon, err := ResolveStyle("b", GroupConfig{MarkerIcon: "x.png", Size: Dimensions{W: 20, H: 30}})
	require.NoError(t, err)
	assert.Equal(t, IconStyle{URL: "x.png", Size: Dimensions{W: 20, H: 30}}, icon)

	circle, err := ResolveStyle("c", GroupConfig{FillColor: "#0f0", Size: Dimensions{W: 10, H: 10}})
	require.NoError(t, err)
	v, ok := circle.(VectorStyle)
	require.True(t, ok)
	assert.Equal(t, 5.0, v.Radius)
	assert.Equal(t, "circle", StyleKind(circle))
}

func TestResolveStyle_NoCapability(t *testing.T) {
	_, err := ResolveStyle("broken", GroupConfig{Name: "Broken"})
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, `group "broken"`, cfgErr.Unit)
	assert.True(t, errors.Is(err, ErrNoRenderCapability))
}

func TestResolveGroup_CollectibleMode(t *testing.T) {
	g, err := ResolveGroup("ore", GroupConfig{FillColor: "#aaa", Collectible: "globalGroup"})
	require.NoError(t, err)
	assert.Equal(t, CollectibleGlobalGroup, g.Collectible)

	_, err = ResolveGroup("ore", GroupConfig{FillColor: "#aaa", Collectible: "sometimes"})
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestWithIcon_OnlyIcons(t *testing.T) {
	icon := WithIcon(IconStyle{URL: "a.png"}, "b.png")
	assert.Equal(t, "b.png", icon.(IconStyle).URL)

	pin := PinStyle{Colour: "red"}
	assert.Equal(t, pin, WithIcon(pin, "b.png"))
}

func TestMapConfig_DecodeJSONAndYAML(t *testing.T) {
	jsonDoc := `{"id":"world","crs":[[0,0],[200,300]],"groups":{"goblin":{"name":"Goblin","fillColor":"#f00","size":[4,6]}},"backgrounds":[{"name":"Day"},{"name":"Night","layer":"night"}]}`
	var fromJSON MapConfig
	require.NoError(t, json.Unmarshal([]byte(jsonDoc), &fromJSON))

	yamlDoc := `
id: world
crs: [[0, 0], [200, 300]]
groups:
  goblin:
    name: Goblin
    fillColor: "#f00"
    size: [4, 6]
backgrounds:
  - name: Day
  - name: Night
    layer: night
`
	var fromYAML MapConfig
	require.NoError(t, yaml.Unmarshal([]byte(yamlDoc), &fromYAML))

	for _, cfg := range []MapConfig{fromJSON, fromYAML} {
		assert.Equal(t, Box{{0, 0}, {200, 300}}, cfg.EffectiveCRS())
		assert.Equal(t, Dimensions{W: 4, H: 6}, cfg.Groups["goblin"].Size)
		cfg.NormaliseBackgrounds()
		assert.Equal(t, "0", cfg.Backgrounds[0].Layer)
		assert.Equal(t, "night", cfg.Backgrounds[1].Layer)
		require.NotNil(t, cfg.Backgrounds[0].At)
		assert.Equal(t, cfg.EffectiveCRS(), *cfg.Backgrounds[0].At)
	}
}

func TestMapConfig_DefaultCRS(t *testing.T) {
	var cfg MapConfig
	assert.Equal(t, DefaultCRS, cfg.EffectiveCRS())
	assert.Equal(t, "x", cfg.GroupName("x"))
}

func TestMarker_AppendLayerTracksProperties(t *testing.T) {
	m := NewMarker("id", nil, Instance{State: &State{}}, geom.XY{}, nil, []string{"chest"})

	assert.True(t, m.AppendLayer("bg:1"))
	assert.False(t, m.AppendLayer("bg:1"))

	v, ok := m.Property("bg")
	require.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, "chest bg:1", m.LayerKey())
	assert.Equal(t, "chest", m.GroupID())
}
