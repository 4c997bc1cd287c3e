/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package obslog holds the process-wide structured logger.
package obslog

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.Logger]

func init() {
	global.Store(zap.NewNop())
}

// L returns the global logger. It is a no-op logger until Init is called.
func L() *zap.Logger { return global.Load() }

// Set replaces the global logger. A nil logger installs a no-op one.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	global.Store(l)
}

// Options select the logger's verbosity and encoding.
type Options struct {
	Verbose bool
	Format  string // "console" or "json"
}

// Init builds a stdout logger from opts and installs it globally.
func Init(opts Options) error {
	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	var enc zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		enc = zapcore.NewConsoleEncoder(consoleEncoderConfig())
	case "json":
		enc = zapcore.NewJSONEncoder(jsonEncoderConfig())
	default:
		return fmt.Errorf("unknown log format %q (want console or json)", opts.Format)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level)
	logger := zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
	if opts.Verbose {
		logger = logger.WithOptions(zap.AddCaller())
	}

	Set(logger)

	return nil
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000-07:00")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}
