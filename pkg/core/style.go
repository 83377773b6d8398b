// pkg/core/style.go
package core

import "fmt"

// RenderStyle is one of IconStyle, PinStyle or VectorStyle
type RenderStyle interface {
	styleKind() string
}

// IconStyle draws an image from a URL
type IconStyle struct {
	URL  string
	Size Dimensions
}

// PinStyle draws a coloured pin
type PinStyle struct {
	Colour string
	Size   Dimensions
}

// VectorStyle draws a circle
type VectorStyle struct {
	Radius          float64
	FillColour      string
	FillOpacity     float64
	StrokeColour    string
	StrokeWidth     float64
	ZoomScaleFactor float64
}

func (IconStyle) styleKind() string   { return "icon" }
func (PinStyle) styleKind() string    { return "pin" }
func (VectorStyle) styleKind() string { return "circle" }

// StyleKind names the variant for logs and CLI output
func StyleKind(s RenderStyle) string {
	if s == nil {
		return "none"
	}
	return s.styleKind()
}

// WithIcon returns s with its image replaced. Only icon styles honour layer
// overrides; other variants are returned unchanged.
func WithIcon(s RenderStyle, url string) RenderStyle {
	if icon, ok := s.(IconStyle); ok && url != "" {
		icon.URL = url
		return icon
	}
	return s
}

const (
	defaultIconSize   = 32
	defaultPinSize    = 32
	defaultCircleSize = 5
)

// ResolveStyle picks the render variant of a group by checking which
// capabilities it declares: pin colour, then icon URL, then fill colour.
func ResolveStyle(id string, g GroupConfig) (RenderStyle, error) {
	switch {
	case g.PinColor != "":
		return PinStyle{Colour: g.PinColor, Size: sizeOr(g.Size, defaultPinSize)}, nil
	case g.MarkerIcon != "":
		return IconStyle{URL: g.MarkerIcon, Size: sizeOr(g.Size, defaultIconSize)}, nil
	case g.FillColor != "":
		size := sizeOr(g.Size, defaultCircleSize)
		v := VectorStyle{
			Radius:          size.W / 2,
			FillColour:      g.FillColor,
			FillOpacity:     g.FillOpacity,
			StrokeColour:    g.StrokeColor,
			StrokeWidth:     g.StrokeWidth,
			ZoomScaleFactor: g.ZoomScaleFactor,
		}
		if v.FillOpacity == 0 {
			v.FillOpacity = 0.7
		}
		if v.StrokeColour == "" {
			v.StrokeColour = v.FillColour
		}
		if v.StrokeWidth == 0 {
			v.StrokeWidth = 1
		}
		if v.ZoomScaleFactor == 0 {
			v.ZoomScaleFactor = 1
		}
		return v, nil
	default:
		return nil, &ConfigurationError{Unit: fmt.Sprintf("group %q", id), Err: ErrNoRenderCapability}
	}
}

func sizeOr(d Dimensions, def float64) Dimensions {
	if d.W == 0 && d.H == 0 {
		return Dimensions{W: def, H: def}
	}
	return d
}

// CollectibleMode is how a group participates in dismissal tracking
type CollectibleMode int

const (
	CollectibleNone CollectibleMode = iota
	CollectibleIndividual
	CollectibleGroup
	CollectibleGlobalGroup
)

// ParseCollectibleMode maps the authored collectible string to a mode
func ParseCollectibleMode(s string) (CollectibleMode, error) {
	switch s {
	case "":
		return CollectibleNone, nil
	case "individual":
		return CollectibleIndividual, nil
	case "group":
		return CollectibleGroup, nil
	case "globalGroup":
		return CollectibleGlobalGroup, nil
	default:
		return CollectibleNone, fmt.Errorf("unknown collectible mode %q", s)
	}
}

func (m CollectibleMode) String() string {
	switch m {
	case CollectibleIndividual:
		return "individual"
	case CollectibleGroup:
		return "group"
	case CollectibleGlobalGroup:
		return "globalGroup"
	default:
		return "none"
	}
}

// Group is a group definition resolved once at load time
type Group struct {
	ID          string
	Config      GroupConfig
	Style       RenderStyle
	Collectible CollectibleMode
}

// ResolveGroup validates a raw group definition
func ResolveGroup(id string, g GroupConfig) (*Group, error) {
	style, err := ResolveStyle(id, g)
	if err != nil {
		return nil, err
	}
	mode, err := ParseCollectibleMode(g.Collectible)
	if err != nil {
		return nil, &ConfigurationError{Unit: fmt.Sprintf("group %q", id), Err: err}
	}
	return &Group{ID: id, Config: g, Style: style, Collectible: mode}, nil
}
