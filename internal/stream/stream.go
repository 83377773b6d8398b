package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/datamaps/internal/api"
	"github.com/OCAP2/datamaps/internal/events"
	"github.com/OCAP2/datamaps/internal/factory"
	"github.com/OCAP2/datamaps/internal/layers"
)

const instrumentationName = "github.com/OCAP2/datamaps/internal/stream"

// DefaultRetryCount is the number of retries after the first attempt
const DefaultRetryCount = 2

// Stats summarises one instantiated payload
type Stats struct {
	Page     string
	Attempts int
	Keys     int
	Skipped  int
	Markers  int
	Failed   int
	Duration time.Duration
}

// StatsRecorder receives stats after every successful stream
type StatsRecorder interface {
	RecordStream(ctx context.Context, s Stats) error
}

// Options configures a Controller.
type Options struct {
	RetryCount int
	RetryDelay time.Duration
	Logger     *slog.Logger
	Recorder   StatsRecorder
}

// Controller fetches marker payloads and routes them through the factory.
type Controller struct {
	fetcher api.Fetcher
	factory *factory.Factory
	engine  *layers.Engine
	bus     *events.Bus
	opts    Options

	attempts metric.Int64Counter
	markers  metric.Int64Counter
}

// New creates a Controller.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(fetcher api.Fetcher, f *factory.Factory, engine *layers.Engine, bus *events.Bus, opts Options) (*Controller, error) {
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &Controller{fetcher: fetcher, factory: f, engine: engine, bus: bus, opts: opts}

	m := otel.Meter(instrumentationName)
	var err error
	c.attempts, err = m.Int64Counter(
		"stream.attempts",
		metric.WithDescription("Total marker query attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating attempts counter: %w", err)
	}
	c.markers, err = m.Int64Counter(
		"stream.markers",
		metric.WithDescription("Total markers instantiated from streamed payloads"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating markers counter: %w", err)
	}
	return c, nil
}

// StreamIn fetches the marker set of a page, retrying transient failures,
// then waits for the display to be ready and instantiates the payload.
// A non-empty filter is both sent to the backend and applied locally.
func (c *Controller) StreamIn(ctx context.Context, page, version string, filter []string) (Stats, error) {
	start := time.Now()
	q := api.Query{Page: page, Version: version, Filter: filter}

	var (
		payload api.Payload
		err     error
		attempt int
	)
	for retriesLeft := c.opts.RetryCount; ; retriesLeft-- {
		attempt++
		c.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("page", page)))
		payload, err = c.fetcher.QueryMarkers(ctx, q)
		if err == nil {
			break
		}
		var apiErr *api.APIError
		if errors.As(err, &apiErr) || ctx.Err() != nil || retriesLeft <= 0 {
			return Stats{Page: page, Attempts: attempt}, fmt.Errorf("streaming %s: %w", page, err)
		}
		c.opts.Logger.Warn("Retrying marker chunk loading", "page", page, "attempt", attempt, "error", err)
		if c.opts.RetryDelay > 0 {
			select {
			case <-time.After(c.opts.RetryDelay):
			case <-ctx.Done():
				return Stats{Page: page, Attempts: attempt}, fmt.Errorf("streaming %s: %w", page, ctx.Err())
			}
		}
	}

	if err := c.bus.Wait(ctx, events.DisplayReady); err != nil {
		return Stats{Page: page, Attempts: attempt}, err
	}

	stats := c.Instantiate(payload, filter)
	stats.Page = page
	stats.Attempts = attempt
	stats.Duration = time.Since(start)
	c.markers.Add(ctx, int64(stats.Markers), metric.WithAttributes(attribute.String("page", page)))

	if c.opts.Recorder != nil {
		if err := c.opts.Recorder.RecordStream(ctx, stats); err != nil {
			c.opts.Logger.Warn("failed to record stream stats", "page", page, "error", err)
		}
	}
	return stats, nil
}

// Instantiate registers every layer named in the payload, then builds its
// markers in payload order with visibility updates deferred. Keys sharing
// no layer with a non-empty allow-list are skipped without building
// anything. A caller already deferring updates keeps them deferred.
func (c *Controller) Instantiate(payload api.Payload, allow []string) Stats {
	var stats Stats
	lists := make([][]string, len(payload))
	for i, chunk := range payload {
		lists[i] = strings.Fields(chunk.Key)
		for _, l := range lists[i] {
			c.engine.Register(l)
		}
	}

	wasDeferred := c.engine.VisibilityUpdatesDeferred()
	c.engine.SetDeferVisibilityUpdates(true)
	for i, chunk := range payload {
		stats.Keys++
		if !intersects(lists[i], allow) {
			stats.Skipped++
			continue
		}
		for _, raw := range chunk.Tuples {
			if _, err := c.factory.Create(lists[i], raw); err != nil {
				stats.Failed++
				c.opts.Logger.Warn("skipping marker", "layers", chunk.Key, "error", err)
				continue
			}
			stats.Markers++
		}
	}
	if !wasDeferred {
		c.engine.SetDeferVisibilityUpdates(false)
	}

	c.bus.Fire(events.ChunkStreamingDone, stats)
	return stats
}

func intersects(list, allow []string) bool {
	if len(allow) == 0 {
		return true
	}
	for _, l := range list {
		for _, a := range allow {
			if l == a {
				return true
			}
		}
	}
	return false
}

// Callbacks receive the outcome of an asynchronous stream
type Callbacks struct {
	OnSuccess func(Stats)
	OnError   func(error)
}

// StreamAsync runs StreamIn in the background. Exactly one callback fires.
// The returned channel closes once it has.
func (c *Controller) StreamAsync(ctx context.Context, page, version string, filter []string, cb Callbacks) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		stats, err := c.StreamIn(ctx, page, version, filter)
		if err != nil {
			c.opts.Logger.Error("marker streaming failed", "page", page, "error", err)
			c.bus.Fire(events.StreamingFailed, err)
			if cb.OnError != nil {
				cb.OnError(err)
			}
			return
		}
		if cb.OnSuccess != nil {
			cb.OnSuccess(stats)
		}
	}()
	return done
}
