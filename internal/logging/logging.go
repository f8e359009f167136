// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package logging sets up the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level and optional rotating file output.
type Options struct {
	Level      string // trace, debug, info, warn, error
	File       string // empty disables file output
	MaxAgeDays int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Configure applies opts to the standard logrus logger. Console output goes
// to stdout; when a file is set every level is mirrored into a rotating log.
// The returned closer flushes the file and must be closed on shutdown.
func Configure(opts Options, stdout io.Writer) (io.Closer, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		l, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		level = l
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: false})
	if stdout == nil {
		stdout = os.Stdout
	}
	log.SetOutput(stdout)

	if opts.File == "" {
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10,
		MaxBackups: 30,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}

	fileFmt := &log.TextFormatter{DisableColors: true, FullTimestamp: true}
	writers := lfshook.WriterMap{}
	for _, l := range log.AllLevels {
		writers[l] = rotator
	}
	log.AddHook(lfshook.NewHook(writers, fileFmt))

	return rotator, nil
}
