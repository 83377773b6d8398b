// pkg/core/geometry.go
package core

import (
	"fmt"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Point is a data-space coordinate pair as authored in map definitions: [lat, lon].
type Point struct {
	Lat float64
	Lon float64
}

// Box is an axis-aligned data-space rectangle given by two corners.
type Box [2]Point

// DefaultCRS is used when a map definition does not specify its coordinate space.
var DefaultCRS = Box{{Lat: 0, Lon: 0}, {Lat: 100, Lon: 100}}

// UnmarshalJSON decodes a point from a two-element array.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	return p.fromPair(pair)
}

// MarshalJSON encodes a point as a two-element array.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lat, p.Lon})
}

// UnmarshalYAML decodes a point from a two-element sequence.
func (p *Point) UnmarshalYAML(value *yaml.Node) error {
	var pair []float64
	if err := value.Decode(&pair); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	return p.fromPair(pair)
}

func (p *Point) fromPair(pair []float64) error {
	if len(pair) != 2 {
		return fmt.Errorf("point: expected 2 coordinates, got %d", len(pair))
	}
	p.Lat, p.Lon = pair[0], pair[1]
	return nil
}

// Dimensions holds a width/height pair. Definitions may give a single number
// (a square, or a diameter for vector markers) or a [w, h] array.
type Dimensions struct {
	W float64
	H float64
}

// UnmarshalJSON accepts a number or a [w, h] array.
func (d *Dimensions) UnmarshalJSON(data []byte) error {
	var single float64
	if err := json.Unmarshal(data, &single); err == nil {
		d.W, d.H = single, single
		return nil
	}
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("dimensions: %w", err)
	}
	return d.fromPair(pair)
}

// UnmarshalYAML accepts a number or a [w, h] sequence.
func (d *Dimensions) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var single float64
		if err := value.Decode(&single); err != nil {
			return fmt.Errorf("dimensions: %w", err)
		}
		d.W, d.H = single, single
		return nil
	}
	var pair []float64
	if err := value.Decode(&pair); err != nil {
		return fmt.Errorf("dimensions: %w", err)
	}
	return d.fromPair(pair)
}

func (d *Dimensions) fromPair(pair []float64) error {
	switch len(pair) {
	case 1:
		d.W, d.H = pair[0], pair[0]
	case 2:
		d.W, d.H = pair[0], pair[1]
	default:
		return fmt.Errorf("dimensions: expected 1 or 2 values, got %d", len(pair))
	}
	return nil
}
