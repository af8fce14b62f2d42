// Package jsonutil provides a configurable JSON encoding/decoding layer
// for the query engine. It defaults to github.com/bytedance/sonic rather
// than encoding/json because the engine decodes a JSON literal or a whole
// document on essentially every query it runs; callers may still swap it
// for another implementation (e.g. for cgo-free builds) via SetConfig.
package jsonutil

import (
	"github.com/bytedance/sonic"
)

// Config holds the JSON encoding/decoding functions in use.
type Config struct {
	Marshal   func(v any) ([]byte, error)
	Unmarshal func(data []byte, v any) error
}

func sonicConfig() Config {
	api := sonic.ConfigDefault
	return Config{
		Marshal:   api.Marshal,
		Unmarshal: api.Unmarshal,
	}
}

var config = sonicConfig()

// SetConfig replaces the global JSON configuration. Call before using any
// package function if a different JSON implementation is desired.
func SetConfig(c Config) { config = c }

// GetConfig returns the current JSON configuration.
func GetConfig() Config { return config }

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) { return config.Marshal(v) }

// Unmarshal parses JSON-encoded data into v.
func Unmarshal(data []byte, v any) error { return config.Unmarshal(data, v) }

// UnmarshalString parses a JSON-encoded string into v.
func UnmarshalString(s string, v any) error { return config.Unmarshal([]byte(s), v) }
