// pkg/core/mapconfig.go
package core

import "strconv"

// MapConfig is the read-only definition of one map
type MapConfig struct {
	ID          string                 `json:"id" yaml:"id"`
	PageName    string                 `json:"pageName" yaml:"pageName"`
	Version     string                 `json:"version" yaml:"version"`
	CRS         *Box                   `json:"crs,omitempty" yaml:"crs,omitempty"`
	Groups      map[string]GroupConfig `json:"groups" yaml:"groups"`
	Layers      map[string]LayerConfig `json:"layers" yaml:"layers"`
	LayerIDs    []string               `json:"layerIds" yaml:"layerIds"`
	Backgrounds []Background           `json:"backgrounds" yaml:"backgrounds"`
	Flags       Flags                  `json:"flags" yaml:"flags"`
	CoordOrder  CoordOrder             `json:"coordOrder" yaml:"coordOrder"`
}

// Flags are the independent feature toggles of a map
type Flags struct {
	ShowCoordinates         bool `json:"showCoordinates" yaml:"showCoordinates"`
	HideLegend              bool `json:"hideLegend" yaml:"hideLegend"`
	DisableZoom             bool `json:"disableZoom" yaml:"disableZoom"`
	Search                  bool `json:"search" yaml:"search"`
	SortChecklistsByAmount  bool `json:"sortChecklistsByAmount" yaml:"sortChecklistsByAmount"`
	VisualEditor            bool `json:"visualEditor" yaml:"visualEditor"`
	IsPreview               bool `json:"isPreview" yaml:"isPreview"`
	RenderMarkersOntoCanvas bool `json:"renderMarkersOntoCanvas" yaml:"renderMarkersOntoCanvas"`
}

// CoordOrder selects how coordinates are printed
type CoordOrder int

const (
	CoordOrderYX CoordOrder = iota
	CoordOrderXY
)

// GroupConfig holds the raw per-group fields as authored
type GroupConfig struct {
	Name                   string     `json:"name" yaml:"name"`
	MarkerIcon             string     `json:"markerIcon,omitempty" yaml:"markerIcon,omitempty"`
	PinColor               string     `json:"pinColor,omitempty" yaml:"pinColor,omitempty"`
	Size                   Dimensions `json:"size" yaml:"size"`
	FillColor              string     `json:"fillColor,omitempty" yaml:"fillColor,omitempty"`
	FillOpacity            float64    `json:"fillOpacity,omitempty" yaml:"fillOpacity,omitempty"`
	StrokeColor            string     `json:"strokeColor,omitempty" yaml:"strokeColor,omitempty"`
	StrokeWidth            float64    `json:"strokeWidth,omitempty" yaml:"strokeWidth,omitempty"`
	ZoomScaleFactor        float64    `json:"zoomScaleFactor,omitempty" yaml:"zoomScaleFactor,omitempty"`
	Collectible            string     `json:"collectible,omitempty" yaml:"collectible,omitempty"`
	Article                string     `json:"article,omitempty" yaml:"article,omitempty"`
	CannotBeSearched       bool       `json:"cannotBeSearched,omitempty" yaml:"cannotBeSearched,omitempty"`
	IsUnselected           bool       `json:"isUnselected,omitempty" yaml:"isUnselected,omitempty"`
	IsNumberedInChecklists bool       `json:"isNumberedInChecklists,omitempty" yaml:"isNumberedInChecklists,omitempty"`
}

// LayerConfig holds a sublayer definition; MarkerIcon overrides the group icon
type LayerConfig struct {
	Name       string `json:"name" yaml:"name"`
	MarkerIcon string `json:"markerIcon,omitempty" yaml:"markerIcon,omitempty"`
}

// Background is one mutually exclusive base image with its overlays
type Background struct {
	Name     string    `json:"name" yaml:"name"`
	Image    string    `json:"image,omitempty" yaml:"image,omitempty"`
	At       *Box      `json:"at,omitempty" yaml:"at,omitempty"`
	Overlays []Overlay `json:"overlays,omitempty" yaml:"overlays,omitempty"`
	Layer    string    `json:"layer,omitempty" yaml:"layer,omitempty"`
}

// Overlay is an image, polyline or rectangle drawn above a background.
// Exactly one of Image (with At), Path, or At alone is meaningful.
type Overlay struct {
	Name         string  `json:"name,omitempty" yaml:"name,omitempty"`
	Image        string  `json:"image,omitempty" yaml:"image,omitempty"`
	At           *Box    `json:"at,omitempty" yaml:"at,omitempty"`
	Path         []Point `json:"path,omitempty" yaml:"path,omitempty"`
	Colour       string  `json:"color,omitempty" yaml:"color,omitempty"`
	BorderColour string  `json:"borderColor,omitempty" yaml:"borderColor,omitempty"`
	Thickness    float64 `json:"thickness,omitempty" yaml:"thickness,omitempty"`
	AntiAlias    bool    `json:"aa,omitempty" yaml:"aa,omitempty"`
}

// OverlayKind is derived from which overlay fields are set
type OverlayKind int

const (
	OverlayRect OverlayKind = iota
	OverlayImage
	OverlayPolyline
)

// Kind reports what the overlay draws
func (o Overlay) Kind() OverlayKind {
	switch {
	case o.Image != "":
		return OverlayImage
	case len(o.Path) > 0:
		return OverlayPolyline
	default:
		return OverlayRect
	}
}

// EffectiveCRS returns the configured data-space rectangle or DefaultCRS
func (c *MapConfig) EffectiveCRS() Box {
	if c.CRS == nil {
		return DefaultCRS
	}
	return *c.CRS
}

// NormaliseBackgrounds fills in defaulted background fields in place:
// a missing layer tag becomes the background index, a missing box the CRS.
func (c *MapConfig) NormaliseBackgrounds() {
	crs := c.EffectiveCRS()
	for i := range c.Backgrounds {
		bg := &c.Backgrounds[i]
		if bg.Layer == "" {
			bg.Layer = strconv.Itoa(i)
		}
		if bg.At == nil {
			at := crs
			bg.At = &at
		}
	}
}

// GroupName returns the display name of a group, or its ID when unnamed
func (c *MapConfig) GroupName(id string) string {
	if g, ok := c.Groups[id]; ok && g.Name != "" {
		return g.Name
	}
	return id
}
