package logging

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, binaryName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", binaryName, sessionStart.Format("20060102_150405")),
	)
}

// StaticContext returns a ContextProvider yielding the same attributes for
// every record
func StaticContext(attrs ...slog.Attr) ContextProvider {
	return func() []slog.Attr { return attrs }
}
