package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/OCAP2/datamaps/internal/api"
	"github.com/OCAP2/datamaps/internal/cache"
	"github.com/OCAP2/datamaps/internal/crs"
	"github.com/OCAP2/datamaps/internal/dismissal"
	"github.com/OCAP2/datamaps/internal/display"
	"github.com/OCAP2/datamaps/internal/events"
	"github.com/OCAP2/datamaps/internal/factory"
	"github.com/OCAP2/datamaps/internal/layers"
	"github.com/OCAP2/datamaps/internal/search"
	"github.com/OCAP2/datamaps/internal/storage"
	"github.com/OCAP2/datamaps/internal/stream"
	"github.com/OCAP2/datamaps/pkg/core"
)

// LoadErrorMessage is shown in the status region when streaming fails
const LoadErrorMessage = "Marker data could not be loaded."

// ErrNotInitialised is returned by operations that need a display surface
var ErrNotInitialised = errors.New("map is not initialised")

// Dependencies holds what a Map is built from. Fetcher and Backend are
// required; the rest is optional.
type Dependencies struct {
	Config  *core.MapConfig
	Fetcher api.Fetcher
	Backend storage.Backend
	Bus     *events.Bus
	Logger  *slog.Logger

	// DataSetFilters restricts which layers are instantiated at all
	DataSetFilters []string

	// SearchParent, when set, receives every entry of this map's index.
	// PanelTitle is added to the forwarded entries.
	SearchParent   *search.Index
	PanelTitle     string
	ScoreThreshold float64

	// RetryCount bounds retries of transient fetch failures; nil means
	// stream.DefaultRetryCount
	RetryCount    *int
	Recorder      stream.StatsRecorder
	EngineOptions []layers.Option
}

// Map is one map instance on a page. It owns the visibility engine, the
// marker factory, the streaming controller and the search index, and wires
// them together through its event bus.
type Map struct {
	cfg       *core.MapConfig
	transform *crs.Transform
	groups    map[string]*core.Group
	filters   []string

	bus      *events.Bus
	holder   *display.Holder
	engine   *layers.Engine
	factory  *factory.Factory
	stream   *stream.Controller
	index    *search.Index
	scopes   *dismissal.Scopes
	status   *display.Status
	registry *cache.MarkerRegistry
	logger   *slog.Logger

	mu          sync.Mutex
	initialised bool
	backgrounds []background
	bgIndex     int
}

// New builds a map from its definition. Groups are registered with the
// engine straight away; unselected groups start excluded.
func New(deps Dependencies) (*Map, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, errors.New("map config is required")
	}
	if deps.Fetcher == nil || deps.Backend == nil {
		return nil, errors.New("fetcher and storage backend are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("map", cfg.ID)
	cfg.NormaliseBackgrounds()

	transform, err := crs.FromBox(cfg.EffectiveCRS())
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*core.Group, len(cfg.Groups))
	for id, gc := range cfg.Groups {
		g, err := core.ResolveGroup(id, gc)
		if err != nil {
			return nil, err
		}
		groups[id] = g
	}

	bus := deps.Bus
	if bus == nil {
		bus, err = events.New(logger)
		if err != nil {
			return nil, fmt.Errorf("creating event bus: %w", err)
		}
	}

	scopes, err := dismissal.OpenScopes(deps.Backend, cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("opening dismissal scopes: %w", err)
	}

	m := &Map{
		cfg:       cfg,
		transform: transform,
		groups:    groups,
		filters:   deps.DataSetFilters,
		bus:       bus,
		holder:    display.NewHolder(),
		scopes:    scopes,
		status:    display.NewStatus(),
		registry:  cache.NewMarkerRegistry(),
		logger:    logger,
	}

	m.engine = layers.New(m.holder, deps.EngineOptions...)
	m.engine.SetDeferVisibilityUpdates(true)
	for id, g := range groups {
		m.engine.Register(id)
		if g.Config.IsUnselected {
			m.engine.SetExclusion(id, true)
		}
	}
	m.engine.SetDeferVisibilityUpdates(false)

	m.factory, err = factory.New(factory.Dependencies{
		Config:    cfg,
		Groups:    groups,
		Transform: transform,
		Engine:    m.engine,
		Scopes:    scopes,
		Bus:       bus,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	retries := stream.DefaultRetryCount
	if deps.RetryCount != nil {
		retries = *deps.RetryCount
	}
	m.stream, err = stream.New(deps.Fetcher, m.factory, m.engine, bus, stream.Options{
		RetryCount: retries,
		Logger:     logger,
		Recorder:   deps.Recorder,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Flags.Search {
		opts := search.Options{Threshold: deps.ScoreThreshold, Bus: bus}
		switch {
		case deps.SearchParent != nil && deps.PanelTitle != "":
			m.index = search.NewChild(deps.SearchParent, deps.PanelTitle, opts)
		case deps.SearchParent != nil:
			m.index = deps.SearchParent
		default:
			m.index = search.New(opts)
		}
	}

	m.subscribe()
	return m, nil
}

func (m *Map) subscribe() {
	refresh := func(...any) error {
		m.RefreshMaxBounds()
		return nil
	}
	m.bus.On(events.MarkerReady, func(args ...any) error {
		mk, ok := args[0].(*core.Marker)
		if !ok {
			return fmt.Errorf("markerReady payload is %T", args[0])
		}
		m.registry.Add(mk)
		if m.index != nil {
			m.index.Add(m.cfg.ID, mk)
		}
		return nil
	})
	m.bus.On(events.ChunkStreamingDone, func(...any) error {
		if m.index != nil {
			m.index.Commit()
		}
		return nil
	})
	m.bus.On(events.ChunkStreamingDone, refresh)
	m.bus.On(events.BackgroundChange, refresh)
	m.bus.On(events.MarkerVisibilityUpdate, refresh)
	m.bus.On(events.LinkedEvent, func(args ...any) error {
		evt, ok := args[0].(core.LinkedEvent)
		if !ok {
			return fmt.Errorf("linkedEvent payload is %T", args[0])
		}
		m.onLinkedEvent(evt)
		return nil
	})
}

// Initialise attaches the display surface, prepares backgrounds, restores
// the stored background choice and opens the display-ready gate.
func (m *Map) Initialise(surface display.Surface) error {
	m.mu.Lock()
	if m.initialised {
		m.mu.Unlock()
		return errors.New("map is already initialised")
	}
	backgrounds, err := m.prepareBackgrounds()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.backgrounds = backgrounds
	m.initialised = true
	m.mu.Unlock()

	m.holder.Attach(surface)
	m.engine.UpdateMembers("")

	stored, _ := m.scopes.Local.Background()
	m.SetCurrentBackground(stored)
	m.RefreshMaxBounds()

	m.bus.FireMemorised(events.DisplayReady)
	return nil
}

// Load streams the map's markers in and updates the status region
func (m *Map) Load(ctx context.Context) (stream.Stats, error) {
	stats, err := m.stream.StreamIn(ctx, m.pageName(), m.cfg.Version, m.filters)
	if err != nil {
		m.logger.Error("marker streaming failed", "error", err)
		m.status.Fail(LoadErrorMessage)
		return stats, err
	}
	m.status.Hide()
	return stats, nil
}

// LoadAsync streams in the background; the channel closes when done
func (m *Map) LoadAsync(ctx context.Context) <-chan struct{} {
	return m.stream.StreamAsync(ctx, m.pageName(), m.cfg.Version, m.filters, stream.Callbacks{
		OnSuccess: func(stream.Stats) { m.status.Hide() },
		OnError:   func(error) { m.status.Fail(LoadErrorMessage) },
	})
}

func (m *Map) pageName() string {
	if m.cfg.PageName != "" {
		return m.cfg.PageName
	}
	return m.cfg.ID
}

// IsLayerUsed reports whether the static configuration mentions a layer
func (m *Map) IsLayerUsed(name string) bool {
	return slices.Contains(m.cfg.LayerIDs, name)
}

// IsLayerFilteredOut reports whether data set filters exclude a layer
func (m *Map) IsLayerFilteredOut(name string) bool {
	return m.filters != nil && !slices.Contains(m.filters, name)
}

// SetLayerRequirement, SetLayerInclusion and SetLayerExclusion change a
// filter dimension and announce the visibility update.
func (m *Map) SetLayerRequirement(layer string, required bool) {
	m.engine.SetRequirement(layer, required)
	m.bus.Fire(events.MarkerVisibilityUpdate)
}

func (m *Map) SetLayerInclusion(layer string, included bool) {
	m.engine.SetInclusion(layer, included)
	m.bus.Fire(events.MarkerVisibilityUpdate)
}

func (m *Map) SetLayerExclusion(layer string, excluded bool) {
	m.engine.SetExclusion(layer, excluded)
	m.bus.Fire(events.MarkerVisibilityUpdate)
}

// RemoveGroup detaches every marker of a group from the map and the index
func (m *Map) RemoveGroup(groupID string) int {
	removed := 0
	for _, mk := range m.engine.ByLayer(groupID) {
		if mk.GroupID() != groupID {
			continue
		}
		removed++
		m.engine.RemoveMember(mk)
		m.registry.Remove(mk)
		if m.index != nil {
			m.index.Remove(mk)
		}
	}
	m.bus.Fire(events.MarkerVisibilityUpdate)
	return removed
}

// MarkerByID finds a live marker by its identity
func (m *Map) MarkerByID(id string) (*core.Marker, bool) {
	return m.registry.Get(id)
}

func (m *Map) ID() string                      { return m.cfg.ID }
func (m *Map) Config() *core.MapConfig         { return m.cfg }
func (m *Map) Bus() *events.Bus                { return m.bus }
func (m *Map) Engine() *layers.Engine          { return m.engine }
func (m *Map) Factory() *factory.Factory       { return m.factory }
func (m *Map) Transform() *crs.Transform       { return m.transform }
func (m *Map) Status() *display.Status         { return m.status }
func (m *Map) Scopes() *dismissal.Scopes       { return m.scopes }
func (m *Map) Group(id string) *core.Group     { return m.groups[id] }
func (m *Map) SearchIndex() *search.Index      { return m.index }
func (m *Map) Registry() *cache.MarkerRegistry { return m.registry }
