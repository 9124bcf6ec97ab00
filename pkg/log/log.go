package log

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger

	// logDir, when set, gives each component its own log file under it.
	logDir string
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer

	// LogDir is the directory for per-component log files. Empty disables
	// file output.
	LogDir string
}

// Init initializes the global logger
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}

	logDir = cfg.LogDir
}

// WithComponent creates a child logger with component field. When a log
// directory is configured the component additionally logs to
// <logdir>/<component>.log in JSON form.
func WithComponent(component string) zerolog.Logger {
	logger := Logger.With().Str("component", component).Logger()
	if logDir == "" {
		return logger
	}

	f, err := os.OpenFile(
		filepath.Join(logDir, component+".log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0o644,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to open component log file")
		return logger
	}

	return zerolog.New(zerolog.MultiLevelWriter(loggerWriter{logger}, f)).
		With().Timestamp().Str("component", component).Logger()
}

// WithInstance creates a child logger with instance field.
func WithInstance(logger zerolog.Logger, instance string) zerolog.Logger {
	return logger.With().Str("instance", instance).Logger()
}

// loggerWriter forwards file-bound log lines to the console logger too.
type loggerWriter struct {
	logger zerolog.Logger
}

func (w loggerWriter) Write(p []byte) (int, error) {
	return w.logger.Write(p)
}

// Helper functions for common logging patterns
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
