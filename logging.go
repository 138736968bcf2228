// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the package logger. Callers may replace it or reconfigure it with InitLogging.
var Log = logrus.NewEntry(newLogger())

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	logLevelFromEnv(logger)
	return logger
}

// logLevelFromEnv applies LOG_LEVEL when it holds a valid logrus level.
func logLevelFromEnv(logger *logrus.Logger) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return
	}

	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}
}

// InitLogging configures the package logger output, format and verbosity.
func InitLogging(output io.Writer, json, verbose bool) {
	logger := logrus.New()
	logger.SetOutput(output)
	logger.SetLevel(logrus.InfoLevel)
	if json {
		logger.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg: "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}

	logLevelFromEnv(logger)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	Log = logrus.NewEntry(logger)
}
