package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
)

// Facility tags every message shipped to Graylog
const Facility = "datamaps"

// SlogManager manages slog-based logging with optional Graylog shipping.
type SlogManager struct {
	logger  *slog.Logger
	console io.Writer

	graylog io.WriteCloser
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{console: os.Stdout}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DialGraylog opens a GELF writer for address
func DialGraylog(address string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("connecting to graylog at %s: %w", address, err)
	}
	w.Facility = Facility
	return w, nil
}

// Setup initializes the logging system with file (or console) and optional
// Graylog output. A nil graylog writer disables shipping. The returned
// logger carries the attributes of provider on every record.
func (m *SlogManager) Setup(file io.Writer, level string, graylog io.WriteCloser, provider ContextProvider) {
	lvl := parseLevel(level)
	m.graylog = graylog

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	// The console only receives records when there is no log file
	var handlers []slog.Handler
	switch {
	case file != nil:
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	case m.console != nil:
		handlers = append(handlers, slog.NewTextHandler(m.console, handlerOpts))
	}
	// GELF short messages are one JSON record each
	if graylog != nil {
		handlers = append(handlers, slog.NewJSONHandler(graylog, handlerOpts))
	}

	var h slog.Handler = NewMultiHandler(handlers...)
	if provider != nil {
		h = NewContextHandler(h, provider)
	}

	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", level, "graylog", graylog != nil)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Close stops Graylog shipping if it was enabled.
func (m *SlogManager) Close() error {
	if m.graylog == nil {
		return nil
	}
	err := m.graylog.Close()
	m.graylog = nil
	return err
}

// WriteLog writes a log entry with the specified component, data, and level.
func (m *SlogManager) WriteLog(component, data, level string) {
	if m.logger == nil {
		return
	}

	switch parseLevel(level) {
	case slog.LevelDebug:
		m.logger.Debug(data, "component", component)
	case slog.LevelWarn:
		m.logger.Warn(data, "component", component)
	case slog.LevelError:
		m.logger.Error(data, "component", component)
	default:
		m.logger.Info(data, "component", component)
	}
}
