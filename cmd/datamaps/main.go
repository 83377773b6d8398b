package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/OCAP2/datamaps/internal/config"
	"github.com/OCAP2/datamaps/internal/logging"
)

// BinaryName names log files and the root command
const BinaryName = "datamaps"

var (
	// SessionStartTime is the time the process started
	SessionStartTime = time.Now()

	// SlogManager owns the process-wide slog handlers
	SlogManager = logging.NewSlogManager()
	// Logger is the process-wide structured logger
	Logger = SlogManager.Logger()

	// LogFile is the open log file, if any
	LogFile *os.File

	configDir    string
	outputFormat string
	logToFile    bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           BinaryName,
		Short:         "Stream, search and relay interactive map markers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			return setupLogging()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			shutdownLogging()
		},
	}

	root.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory containing datamaps.cfg.json")
	root.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json or yaml")
	root.PersistentFlags().String("log-level", "", "Override the configured log level")
	root.PersistentFlags().BoolVar(&logToFile, "log-file", false, "Write logs to a file in the logs directory")
	_ = viper.BindPFlag("logLevel", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newStreamCommand(), newRelayCommand(), newDismissCommand())
	return root
}

// loadConfig falls back to defaults when no config file is present
func loadConfig() error {
	err := config.Load(configDir)
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		Logger.Warn("No config file found, using defaults", "dir", configDir)
		return nil
	}
	return err
}

func setupLogging() error {
	cfg := config.GetLoggingConfig()

	var file io.Writer
	if logToFile {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return fmt.Errorf("creating logs directory: %w", err)
		}
		path := logging.LogFilePath(cfg.Dir, BinaryName, SessionStartTime)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		LogFile = f
		file = f
	}

	var graylog io.WriteCloser
	if cfg.GraylogEnabled {
		w, err := logging.DialGraylog(cfg.GraylogAddress)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			graylog = w
		}
	}

	SlogManager.Setup(file, cfg.Level, graylog, nil)
	Logger = SlogManager.Logger()
	if LogFile != nil {
		Logger.Info("Logging to file", "path", LogFile.Name())
	}
	return nil
}

func shutdownLogging() {
	if err := SlogManager.Close(); err != nil {
		Logger.Warn("Failed to close Graylog writer", "error", err)
	}
	if LogFile != nil {
		_ = LogFile.Close()
	}
}

// consoleLogger is a zerolog logger on stderr at the configured level
func consoleLogger() zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(config.GetLoggingConfig().Level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Str("binary", BinaryName).
		Logger()
}
