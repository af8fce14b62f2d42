// Package elog provides configurable zap logger creation for the query
// engine and its CLI, selecting among a terminal, JSON, logfmt, or noop
// encoding by name.
package elog

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Style selects the logger's output encoding.
type Style string

const (
	StyleTerminal Style = "terminal"
	StyleJSON     Style = "json"
	StyleLogfmt   Style = "logfmt"
	StyleNoop     Style = "noop"
)

// Config controls logger construction. A zero Config yields a terminal
// logger at info level.
type Config struct {
	Style Style
	Level string
}

// New creates a zap logger from the given Config. If cfg is nil or has
// empty fields, it defaults to terminal style at info level.
func New(cfg *Config) (*zap.Logger, error) {
	style := StyleTerminal
	level := zapcore.InfoLevel

	if cfg != nil {
		if cfg.Style != "" {
			style = cfg.Style
		}
		if cfg.Level != "" {
			lvl, err := zapcore.ParseLevel(cfg.Level)
			if err != nil {
				return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
			}
			level = lvl
		}
	}

	switch style {
	case StyleNoop:
		return zap.NewNop(), nil
	case StyleJSON:
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		return zcfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	case StyleLogfmt:
		encCfg := zapcore.EncoderConfig{
			TimeKey:       "ts",
			LevelKey:      "lvl",
			NameKey:       "logger",
			CallerKey:     "caller",
			MessageKey:    "msg",
			StacktraceKey: "stacktrace",
			LineEnding:    zapcore.DefaultLineEnding,
		}
		core := zapcore.NewCore(newLogfmtEncoder(encCfg), zapcore.AddSync(os.Stderr), level)
		return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)), nil
	case StyleTerminal:
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		return zcfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	default:
		return nil, fmt.Errorf("invalid logging style %q: must be one of terminal, json, logfmt, noop", style)
	}
}

// Must is like New but panics on error; used for package-level default
// loggers where there is no caller to hand the error to.
func Must(cfg *Config) *zap.Logger {
	l, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return l
}
