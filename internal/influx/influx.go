package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/OCAP2/datamaps/internal/config"
	"github.com/OCAP2/datamaps/internal/stream"
)

// Measurement is the measurement name of stream statistics points
const Measurement = "datamaps_stream"

// ErrDisabled is returned by Connect when the sink is switched off
var ErrDisabled = errors.New("influx sink is disabled")

// Sink writes stream statistics to InfluxDB, or to a gzipped line protocol
// backup file when the server cannot be reached.
type Sink struct {
	mu         sync.Mutex
	cfg        config.InfluxConfig
	client     influxdb2.Client
	writer     influxdb2_api.WriteAPI
	backup     *gzip.Writer
	backupFile *os.File
	valid      bool
	logger     zerolog.Logger
	backupPath string
}

// NewSink creates a sink; call Connect before writing.
func NewSink(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Sink {
	return &Sink{cfg: cfg, logger: log, backupPath: backupPath}
}

// Connect establishes a connection to InfluxDB, falling back to the backup
// file when the server does not answer.
func (s *Sink) Connect(ctx context.Context) error {
	if !s.cfg.Enabled {
		return ErrDisabled
	}

	s.client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", s.cfg.Protocol, s.cfg.Host, s.cfg.Port),
		s.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := s.client.Ping(ctx)
	if err != nil || !running {
		s.valid = false
		if s.backup == nil {
			s.logger.Info().Str("backupPath", s.backupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")
			file, err := os.OpenFile(s.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %w", err)
			}
			s.backupFile = file
			s.backup = gzip.NewWriter(file)
		}
		return nil
	}

	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	s.writer = s.client.WriteAPI(s.cfg.Org, s.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			s.logger.Error().Err(writeErr).Str("bucket", s.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(s.writer.Errors())
	s.valid = true
	s.logger.Info().Str("bucket", s.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (s *Sink) ensureBucket(ctx context.Context) error {
	org, err := s.client.OrganizationsAPI().FindOrganizationByName(ctx, s.cfg.Org)
	if err != nil {
		s.logger.Info().Str("org", s.cfg.Org).Msg("Organization not found, creating")
		org, err = s.client.OrganizationsAPI().CreateOrganizationWithName(ctx, s.cfg.Org)
		if err != nil {
			return fmt.Errorf("creating organization %s: %w", s.cfg.Org, err)
		}
	}

	if _, err := s.client.BucketsAPI().FindBucketByName(ctx, s.cfg.Bucket); err == nil {
		return nil
	}
	s.logger.Info().Str("bucket", s.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = s.client.BucketsAPI().CreateBucketWithName(ctx, org, s.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * 30, // 30 days
	})
	if err != nil {
		return fmt.Errorf("creating bucket %s: %w", s.cfg.Bucket, err)
	}
	return nil
}

// Point converts stream statistics into a line protocol point
func Point(st stream.Stats, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		Measurement,
		map[string]string{"page": st.Page},
		map[string]any{
			"attempts":    st.Attempts,
			"keys":        st.Keys,
			"skipped":     st.Skipped,
			"markers":     st.Markers,
			"failed":      st.Failed,
			"duration_ms": st.Duration.Milliseconds(),
		},
		at,
	)
}

// RecordStream writes one statistics point.
func (s *Sink) RecordStream(_ context.Context, st stream.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	point := Point(st, time.Now())
	if s.valid {
		s.writer.WritePoint(point)
		return nil
	}
	if s.backup == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := s.backup.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Valid reports whether points go to a live server
func (s *Sink) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

// Close flushes pending writes and releases the client and backup file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		s.writer.Flush()
	}
	if s.client != nil {
		s.client.Close()
	}
	var errs []error
	if s.backup != nil {
		errs = append(errs, s.backup.Close())
		s.backup = nil
	}
	if s.backupFile != nil {
		errs = append(errs, s.backupFile.Close())
		s.backupFile = nil
	}
	return errors.Join(errs...)
}
