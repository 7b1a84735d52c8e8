// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/warthog618/atmqtt/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{}

func (nopCloser) Close() error {
	return nil
}

// newLogger builds the logger described by the config.
//
// The returned Closer closes the log file, if any.
func newLogger(cfg config.LoggingConfig) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays, // days
			Compress:   cfg.Compress,
		}
		w = lj
		closer = lj
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339Nano,
			NoColor:    cfg.File != "",
		}
	}
	log := zerolog.New(w).Level(level).With().Timestamp().
		Str("service", "mqttat").
		Logger()
	return log, closer, nil
}
