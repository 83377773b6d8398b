package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OCAP2/datamaps/internal/api"
	"github.com/OCAP2/datamaps/internal/config"
	"github.com/OCAP2/datamaps/internal/crs"
	"github.com/OCAP2/datamaps/internal/display"
	"github.com/OCAP2/datamaps/internal/events"
	"github.com/OCAP2/datamaps/internal/influx"
	"github.com/OCAP2/datamaps/internal/logging"
	"github.com/OCAP2/datamaps/internal/session"
	"github.com/OCAP2/datamaps/internal/stream"
)

type streamOptions struct {
	filters    []string
	background int
	search     string
	limit      int
	timeout    time.Duration
}

type searchHit struct {
	ID     string  `json:"id" yaml:"id"`
	Label  string  `json:"label" yaml:"label"`
	Group  string  `json:"group" yaml:"group"`
	Coords string  `json:"coords" yaml:"coords"`
	Score  float64 `json:"score" yaml:"score"`
}

type streamSummary struct {
	Map        string         `json:"map" yaml:"map"`
	Page       string         `json:"page" yaml:"page"`
	Attempts   int            `json:"attempts" yaml:"attempts"`
	Markers    int            `json:"markers" yaml:"markers"`
	Skipped    int            `json:"skipped" yaml:"skipped"`
	Failed     int            `json:"failed" yaml:"failed"`
	Visible    int            `json:"visible" yaml:"visible"`
	Background string         `json:"background,omitempty" yaml:"background,omitempty"`
	Groups     map[string]int `json:"groups" yaml:"groups"`
	Bounds     []float64      `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	Duration   string         `json:"duration" yaml:"duration"`
	Search     []searchHit    `json:"search,omitempty" yaml:"search,omitempty"`
}

func (s streamSummary) renderText(w io.Writer) error {
	fmt.Fprintf(w, "%s (%s)\n", s.Map, s.Page)
	fmt.Fprintf(w, "  markers:  %d created, %d visible, %d keys skipped, %d failed\n", s.Markers, s.Visible, s.Skipped, s.Failed)
	fmt.Fprintf(w, "  attempts: %d in %s\n", s.Attempts, s.Duration)
	if s.Background != "" {
		fmt.Fprintf(w, "  background: %s\n", s.Background)
	}
	groups := make([]string, 0, len(s.Groups))
	for g := range s.Groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		fmt.Fprintf(w, "    %-24s %d\n", g, s.Groups[g])
	}
	for i, hit := range s.Search {
		fmt.Fprintf(w, "  %2d. %s [%s] at %s (%.1f)\n", i+1, hit.Label, hit.Group, hit.Coords, hit.Score)
	}
	return nil
}

func newStreamCommand() *cobra.Command {
	opts := &streamOptions{}
	cmd := &cobra.Command{
		Use:   "stream <map-definition>",
		Short: "Load a map's markers from the backend and summarise what is shown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			summary, err := runStream(ctx, args[0], opts)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), outputFormat, summary)
		},
	}
	cmd.Flags().StringSliceVar(&opts.filters, "filter", nil, "Only instantiate layer keys sharing one of these layers")
	cmd.Flags().IntVar(&opts.background, "background", -1, "Background index to show instead of the stored preference")
	cmd.Flags().StringVarP(&opts.search, "search", "s", "", "Search phrase to run once markers are loaded")
	cmd.Flags().IntVar(&opts.limit, "limit", 10, "Maximum number of search results")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Give up streaming after this long")
	return cmd
}

func runStream(ctx context.Context, path string, opts *streamOptions) (*streamSummary, error) {
	mapCfg, err := config.LoadMapConfig(path)
	if err != nil {
		return nil, err
	}
	if opts.search != "" {
		mapCfg.Flags.Search = true
	}

	backend, err := openStorage()
	if err != nil {
		return nil, err
	}
	defer closeStorage(backend)

	zl := consoleLogger()
	bus, err := events.New(logging.NewBusLogger(zl))
	if err != nil {
		return nil, err
	}

	backendCfg := config.GetBackendConfig()
	deps := session.Dependencies{
		Config:         mapCfg,
		Fetcher:        api.New(backendCfg),
		Backend:        backend,
		Bus:            bus,
		Logger:         Logger,
		DataSetFilters: opts.filters,
		ScoreThreshold: float64(config.GetScoreThreshold()),
		RetryCount:     &backendCfg.RetryCount,
	}

	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		backup := filepath.Join(config.GetLoggingConfig().Dir, fmt.Sprintf("%s_influx_%s.lp.gz", BinaryName, SessionStartTime.Format("20060102_150405")))
		sink := influx.NewSink(influxCfg, zl, backup)
		if err := sink.Connect(ctx); err != nil {
			Logger.Warn("Stream statistics disabled", "error", err)
		} else {
			defer sink.Close()
			deps.Recorder = sink
		}
	}

	m, err := session.New(deps)
	if err != nil {
		return nil, err
	}

	canvas := display.NewCanvas()
	if err := m.Initialise(canvas); err != nil {
		return nil, err
	}
	if opts.background >= 0 {
		m.SetCurrentBackground(opts.background)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()
	stats, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}

	return summarise(m, canvas, stats, opts), nil
}

func summarise(m *session.Map, canvas *display.Canvas, stats stream.Stats, opts *streamOptions) *streamSummary {
	cfg := m.Config()
	summary := &streamSummary{
		Map:      cfg.ID,
		Page:     stats.Page,
		Attempts: stats.Attempts,
		Markers:  stats.Markers,
		Skipped:  stats.Skipped,
		Failed:   stats.Failed,
		Visible:  canvas.Count(),
		Groups:   make(map[string]int),
		Duration: stats.Duration.Round(time.Millisecond).String(),
	}
	if len(cfg.Backgrounds) > 0 {
		summary.Background = cfg.Backgrounds[m.CurrentBackground()].Name
	}
	for _, mk := range canvas.Markers() {
		summary.Groups[cfg.GroupName(mk.GroupID())]++
	}
	if lo, hi, ok := canvas.MaxBounds().MinMaxXYs(); ok {
		summary.Bounds = []float64{lo.X, lo.Y, hi.X, hi.Y}
	}

	if idx := m.SearchIndex(); idx != nil && opts.search != "" {
		for _, r := range idx.Query(opts.search, opts.limit) {
			mk := r.Entry.Marker
			summary.Search = append(summary.Search, searchHit{
				ID:     mk.ID,
				Label:  r.Entry.Label,
				Group:  cfg.GroupName(mk.GroupID()),
				Coords: crs.CoordLabel(mk.Instance.Point(), cfg.CoordOrder),
				Score:  r.Score,
			})
		}
	}
	return summary
}
