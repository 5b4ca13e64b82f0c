package main

import (
	"bytes"
	"log/slog"
	"os"

	"github.com/mreinstein/cobalt-bloom/bloom"
	"github.com/pelletier/go-toml/v2"
)

type Window struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
}

// Config is the demo configuration file. Every key is optional.
type Config struct {
	Window   Window       `toml:"window"`
	LogLevel slog.Level   `toml:"log_level"`
	Bloom    bloom.Config `toml:"bloom"`
}

func defaultConfig() Config {
	return Config{
		Window:   Window{Width: 1440, Height: 810, Title: "go + webgpu + glfw bloom"},
		LogLevel: slog.LevelInfo,
		Bloom:    bloom.DefaultConfig(),
	}
}

// LoadConfig reads a TOML config over the defaults. An empty path returns
// the defaults.
func LoadConfig(path string) (Config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return c, err
	}
	return c, c.Bloom.Validate()
}
