package crs

import (
	"errors"
	"math"
	"testing"

	"github.com/OCAP2/datamaps/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

const tolerance = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestNew_TopLeftOrigin(t *testing.T) {
	tr, err := New(core.Point{Lat: 0, Lon: 0}, core.Point{Lat: 200, Lon: 400})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Origin() != TopLeft {
		t.Errorf("expected top-left origin, got %s", tr.Origin())
	}
	if !near(tr.Scale(), 0.5) {
		t.Errorf("expected scale=0.5, got %f", tr.Scale())
	}

	xy := tr.TranslatePoint(core.Point{Lat: 50, Lon: 100})
	if !near(xy.X, 75) {
		t.Errorf("expected X=75, got %f", xy.X)
	}
	if !near(xy.Y, 50) {
		t.Errorf("expected Y=50, got %f", xy.Y)
	}
}

func TestNew_BottomLeftOrigin(t *testing.T) {
	tr, err := New(core.Point{Lat: 100, Lon: 0}, core.Point{Lat: 0, Lon: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Origin() != BottomLeft {
		t.Errorf("expected bottom-left origin, got %s", tr.Origin())
	}

	xy := tr.TranslatePoint(core.Point{Lat: 25, Lon: 30})
	if !near(xy.X, 25) || !near(xy.Y, 30) {
		t.Errorf("expected (25, 30), got (%f, %f)", xy.X, xy.Y)
	}
}

func TestNew_OnlyOneAxisSmallerIsBottomLeft(t *testing.T) {
	tr, err := New(core.Point{Lat: 0, Lon: 50}, core.Point{Lat: 100, Lon: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Origin() != BottomLeft {
		t.Errorf("expected bottom-left origin, got %s", tr.Origin())
	}
}

func TestNew_MalformedRectangle(t *testing.T) {
	cases := []core.Box{
		{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 100}},
		{{Lat: -5, Lon: 0}, {Lat: -1, Lon: 100}},
		{{Lat: math.NaN(), Lon: 0}, {Lat: math.NaN(), Lon: 1}},
	}
	for _, box := range cases {
		_, err := FromBox(box)
		if !errors.Is(err, core.ErrMalformedCRS) {
			t.Errorf("expected ErrMalformedCRS for %v, got %v", box, err)
		}
		var cfgErr *core.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("expected ConfigurationError for %v", box)
		}
	}
}

func TestRoundTrip_BothOrigins(t *testing.T) {
	boxes := []core.Box{
		core.DefaultCRS,
		{{Lat: 0, Lon: 0}, {Lat: 3000, Lon: 1500}},
		{{Lat: 640, Lon: 0}, {Lat: 0, Lon: 480}},
	}
	points := []core.Point{{Lat: 0, Lon: 0}, {Lat: 12.345, Lon: 67.891}, {Lat: 99.9, Lon: 0.001}, {Lat: 640, Lon: 480}}

	for _, box := range boxes {
		tr, err := FromBox(box)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, p := range points {
			back := tr.InversePoint(tr.TranslatePoint(p))
			if math.Abs(back.Lat-p.Lat) > 1e-6 || math.Abs(back.Lon-p.Lon) > 1e-6 {
				t.Errorf("%s: round trip of %v gave %v", tr.Origin(), p, back)
			}
		}
	}
}

func TestTranslatePoint_DoesNotMutateInput(t *testing.T) {
	tr, _ := New(core.Point{Lat: 0, Lon: 0}, core.Point{Lat: 100, Lon: 100})
	p := core.Point{Lat: 10, Lon: 20}
	_ = tr.TranslatePoint(p)
	if p.Lat != 10 || p.Lon != 20 {
		t.Errorf("input point was mutated: %v", p)
	}
}

func TestTranslateBox_BottomLeftUsesBothLongitudes(t *testing.T) {
	tr, _ := New(core.Point{Lat: 100, Lon: 0}, core.Point{Lat: 0, Lon: 100})
	env := tr.TranslateBox(core.Box{{Lat: 10, Lon: 20}, {Lat: 30, Lon: 40}})

	minXY, maxXY, ok := env.MinMaxXYs()
	if !ok {
		t.Fatal("expected non-empty envelope")
	}
	if minXY != (geom.XY{X: 10, Y: 20}) || maxXY != (geom.XY{X: 30, Y: 40}) {
		t.Errorf("unexpected envelope %v - %v", minXY, maxXY)
	}
}

func TestTranslateBox_TopLeftFlipsLatitude(t *testing.T) {
	tr, _ := New(core.Point{Lat: 0, Lon: 0}, core.Point{Lat: 100, Lon: 100})
	env := tr.TranslateBox(core.Box{{Lat: 10, Lon: 20}, {Lat: 30, Lon: 40}})

	minXY, maxXY, _ := env.MinMaxXYs()
	if !near(minXY.X, 70) || !near(maxXY.X, 90) {
		t.Errorf("expected flipped X range [70, 90], got [%f, %f]", minXY.X, maxXY.X)
	}
}

func TestTranslatePath(t *testing.T) {
	tr, _ := New(core.Point{Lat: 0, Lon: 0}, core.Point{Lat: 100, Lon: 100})

	ls, err := tr.TranslatePath([]core.Point{{Lat: 0, Lon: 0}, {Lat: 50, Lon: 50}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ls.Coordinates().Length() != 2 {
		t.Errorf("expected 2 points, got %d", ls.Coordinates().Length())
	}

	if _, err := tr.TranslatePath([]core.Point{{Lat: 1, Lon: 1}}); err == nil {
		t.Error("expected error for single-point path")
	}
}

func TestCoordLabel(t *testing.T) {
	p := core.Point{Lat: 1.234, Lon: 5.678}
	if got := CoordLabel(p, core.CoordOrderYX); got != "1.23, 5.68" {
		t.Errorf("unexpected label %q", got)
	}
	if got := CoordLabel(p, core.CoordOrderXY); got != "5.68, 1.23" {
		t.Errorf("unexpected label %q", got)
	}
}

func TestParsePoint(t *testing.T) {
	p, err := ParsePoint("10.5, -3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lat != 10.5 || p.Lon != -3 {
		t.Errorf("unexpected point %v", p)
	}

	for _, bad := range []string{"", "1", "a,b", "1,2,3"} {
		if _, err := ParsePoint(bad); !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("expected ErrInvalidCoordinates for %q, got %v", bad, err)
		}
	}
}
