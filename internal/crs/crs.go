package crs

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/datamaps/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// DISPLAY SPACE
// Data-space rectangles are mapped onto a fixed square of side 100. The
// latitude axis is flipped when the data origin is the top-left corner;
// longitude is never flipped. X carries display latitude, Y display longitude.

// ErrInvalidCoordinates is returned when a coordinate string cannot be parsed
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Origin is the corner the data space is anchored at
type Origin int

const (
	BottomLeft Origin = iota
	TopLeft
)

func (o Origin) String() string {
	if o == TopLeft {
		return "top-left"
	}
	return "bottom-left"
}

// Transform converts data-space coordinates into display space
type Transform struct {
	origin Origin
	yMax   float64
	scale  float64
}

// New builds a transform for the rectangle spanned by two corners.
// The origin is top-left only when both coordinates of the first corner are
// smaller than those of the second.
func New(corner0, corner1 core.Point) (*Transform, error) {
	origin := BottomLeft
	if corner0.Lat < corner1.Lat && corner0.Lon < corner1.Lon {
		origin = TopLeft
	}
	yMax := math.Max(corner0.Lat, corner1.Lat)
	if math.IsNaN(yMax) || math.IsInf(yMax, 0) || yMax <= 0 {
		return nil, &core.ConfigurationError{
			Unit: fmt.Sprintf("crs [[%g, %g], [%g, %g]]", corner0.Lat, corner0.Lon, corner1.Lat, corner1.Lon),
			Err:  core.ErrMalformedCRS,
		}
	}
	return &Transform{origin: origin, yMax: yMax, scale: 100 / yMax}, nil
}

// FromBox builds a transform from a configured CRS box
func FromBox(b core.Box) (*Transform, error) {
	return New(b[0], b[1])
}

// Origin reports the derived origin convention
func (t *Transform) Origin() Origin { return t.origin }

// Scale reports the uniform scale factor
func (t *Transform) Scale() float64 { return t.scale }

// TranslatePoint maps a data-space point into display space
func (t *Transform) TranslatePoint(p core.Point) geom.XY {
	if t.origin == TopLeft {
		return geom.XY{X: (t.yMax - p.Lat) * t.scale, Y: p.Lon * t.scale}
	}
	return geom.XY{X: p.Lat * t.scale, Y: p.Lon * t.scale}
}

// TranslateBox maps a data-space box into a display-space envelope
func (t *Transform) TranslateBox(b core.Box) geom.Envelope {
	return geom.Envelope{}.
		ExpandToIncludeXY(t.TranslatePoint(b[0])).
		ExpandToIncludeXY(t.TranslatePoint(b[1]))
}

// InversePoint maps a display-space position back into data space
func (t *Transform) InversePoint(xy geom.XY) core.Point {
	lon := xy.Y / t.scale
	if t.origin == TopLeft {
		return core.Point{Lat: t.yMax - xy.X/t.scale, Lon: lon}
	}
	return core.Point{Lat: xy.X / t.scale, Lon: lon}
}

// TranslatePath maps a polyline overlay into a display-space line string
func (t *Transform) TranslatePath(path []core.Point) (geom.LineString, error) {
	if len(path) < 2 {
		return geom.LineString{}, fmt.Errorf("polyline must have at least 2 points, got %d", len(path))
	}
	flat := make([]float64, 0, len(path)*2)
	for _, p := range path {
		xy := t.TranslatePoint(p)
		flat = append(flat, xy.X, xy.Y)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY)), nil
}

// CoordLabel formats a data-space point for display with two decimals
func CoordLabel(p core.Point, order core.CoordOrder) string {
	if order == core.CoordOrderXY {
		return fmt.Sprintf("%.2f, %.2f", p.Lon, p.Lat)
	}
	return fmt.Sprintf("%.2f, %.2f", p.Lat, p.Lon)
}

// ParsePoint parses a "lat,lon" string into a data-space point
func ParsePoint(s string) (core.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return core.Point{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.Point{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.Point{}, ErrInvalidCoordinates
	}
	return core.Point{Lat: lat, Lon: lon}, nil
}
