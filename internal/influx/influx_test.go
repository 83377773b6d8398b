package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/datamaps/internal/config"
	"github.com/OCAP2/datamaps/internal/stream"
)

func TestConnect_Disabled(t *testing.T) {
	s := NewSink(config.InfluxConfig{}, zerolog.Nop(), filepath.Join(t.TempDir(), "backup.lp.gz"))
	assert.ErrorIs(t, s.Connect(context.Background()), ErrDisabled)
	assert.False(t, s.Valid())
}

func TestRecordStream_WithoutConnect(t *testing.T) {
	s := NewSink(config.InfluxConfig{}, zerolog.Nop(), "")
	assert.Error(t, s.RecordStream(context.Background(), stream.Stats{}))
}

func TestPoint(t *testing.T) {
	at := time.Unix(1700000000, 0)
	p := Point(stream.Stats{Page: "Map:World", Attempts: 2, Markers: 14, Duration: 1500 * time.Millisecond}, at)

	assert.Equal(t, Measurement, p.Name())
	require.Len(t, p.TagList(), 1)
	assert.Equal(t, "page", p.TagList()[0].Key)
	assert.Equal(t, "Map:World", p.TagList()[0].Value)

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, int64(14), fields["markers"])
	assert.Equal(t, int64(2), fields["attempts"])
	assert.Equal(t, int64(1500), fields["duration_ms"])
	assert.Equal(t, at, p.Time())
}

func TestRecordStream_FallsBackToBackupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.lp.gz")
	s := NewSink(config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1",
		Org:      "datamaps-metrics",
		Bucket:   "datamaps",
	}, zerolog.Nop(), path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	assert.False(t, s.Valid())

	require.NoError(t, s.RecordStream(ctx, stream.Stats{Page: "Map:World", Markers: 3}))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)

	line := string(raw)
	assert.True(t, strings.HasPrefix(line, Measurement+",page=Map:World "), line)
	assert.Contains(t, line, "markers=3i")
}
