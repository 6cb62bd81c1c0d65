// logger.go - Structured logging for the mixer daemon.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
)

// NewLogger builds the daemon logger from config: console output, optional
// append-only log file, level from config. gnark's internal logger is routed
// to the same sink so proving output lands with everything else.
func NewLogger(cfg *Config) (zerolog.Logger, func() error, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	writers := []io.Writer{console}
	closeFn := func() error { return nil }

	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return zerolog.Logger{}, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
		closeFn = file.Close
	}

	log := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()

	gnarklogger.Set(log)
	return log, closeFn, nil
}
