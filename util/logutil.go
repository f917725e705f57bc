package util

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// InitSlog configures the default slog logger. The base level is Warn, or
// Info when verbose is set; the LOG_LEVEL environment variable overrides
// both. Supported levels: debug, info, warn, error.
//
// When logFile is non-empty, log output is mirrored to a size-rotated file
// so a long-running watcher does not fill the disk.
func InitSlog(verbose bool, logFile string) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}

	if logLevel, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch strings.ToLower(logLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	var w io.Writer = os.Stderr
	if logFile != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		})
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, opts)))
}
