package factory

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/OCAP2/datamaps/internal/cache"
	"github.com/OCAP2/datamaps/internal/crs"
	"github.com/OCAP2/datamaps/internal/dismissal"
	"github.com/OCAP2/datamaps/internal/events"
	"github.com/OCAP2/datamaps/internal/layers"
	"github.com/OCAP2/datamaps/pkg/core"
)

// IconCacheSize bounds the number of resolved styles kept per factory
const IconCacheSize = 128

// ErrUnknownGroup is returned when the first layer names no configured group
var ErrUnknownGroup = errors.New("unknown marker group")

// Dependencies holds everything a Factory needs to build markers.
type Dependencies struct {
	Config    *core.MapConfig
	Groups    map[string]*core.Group
	Transform *crs.Transform
	Engine    *layers.Engine
	Scopes    *dismissal.Scopes
	Bus       *events.Bus
	Logger    *slog.Logger
}

// Factory turns raw marker tuples into attached markers
type Factory struct {
	deps    Dependencies
	styles  *lru.Cache[string, core.RenderStyle]
	scratch sync.Pool
	created cache.SafeCounter
}

// New creates a Factory
func New(deps Dependencies) (*Factory, error) {
	styles, err := lru.New[string, core.RenderStyle](IconCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating style cache: %w", err)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	f := &Factory{deps: deps, styles: styles}
	f.scratch.New = func() any {
		buf := make([]json.RawMessage, 0, 3)
		return &buf
	}
	return f, nil
}

// Create decodes one raw tuple and builds a marker from it
func (f *Factory) Create(layerList []string, raw []byte) (*core.Marker, error) {
	buf := f.scratch.Get().(*[]json.RawMessage)
	inst, err := core.DecodeInstance(raw, buf)
	*buf = (*buf)[:0]
	f.scratch.Put(buf)
	if err != nil {
		return nil, err
	}
	return f.CreateFromInstance(layerList, inst)
}

// CreateFromInstance builds, attaches and announces a marker
func (f *Factory) CreateFromInstance(layerList []string, inst core.Instance) (*core.Marker, error) {
	if len(layerList) == 0 {
		return nil, layers.ErrEmptyLayerList
	}
	group, ok := f.deps.Groups[layerList[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, layerList[0])
	}
	if inst.State == nil {
		inst.State = &core.State{}
	}

	style := f.StyleFor(layerList, group)
	pos := f.deps.Transform.TranslatePoint(inst.Point())
	m := core.NewMarker(core.MarkerID(group.ID, inst), group, inst, pos, style, layerList)

	if err := f.deps.Engine.AddMember(m); err != nil {
		f.deps.Logger.Debug("marker rejected", "id", m.ID, "layers", m.LayerKey(), "error", err)
		return nil, fmt.Errorf("attaching marker %s: %w", m.ID, err)
	}
	if f.deps.Scopes != nil {
		m.SetDismissed(f.deps.Scopes.StateOf(m))
	}
	f.created.Inc()

	if f.deps.Bus != nil {
		f.deps.Bus.Fire(events.MarkerReady, m)
	}
	return m, nil
}

// StyleFor resolves the group style with the first layer icon override
// applied. Results are cached per canonical layer list.
func (f *Factory) StyleFor(layerList []string, group *core.Group) core.RenderStyle {
	key := strings.Join(layerList, " ")
	if s, ok := f.styles.Get(key); ok {
		return s
	}
	style := group.Style
	if _, isIcon := style.(core.IconStyle); isIcon {
		for _, l := range layerList {
			if lc, ok := f.deps.Config.Layers[l]; ok && lc.MarkerIcon != "" {
				style = core.WithIcon(style, lc.MarkerIcon)
				break
			}
		}
	}
	f.styles.Add(key, style)
	return style
}

// Created returns how many markers this factory has attached
func (f *Factory) Created() int {
	return f.created.Value()
}

// CachedStyles returns the number of cached layer-list styles
func (f *Factory) CachedStyles() int {
	return f.styles.Len()
}
