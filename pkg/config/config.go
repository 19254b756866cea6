// Package config loads the YAML configuration shared by the CLI and server.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Corpus CorpusConfig `yaml:"corpus"`
	Model  ModelConfig  `yaml:"model"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	MusicDir  string `yaml:"music_dir"`
	BodyLimit string `yaml:"body_limit"` // echo size syntax, e.g. "64M"
}

// CorpusConfig points at the reference track CSV.
type CorpusConfig struct {
	Path string `yaml:"path"`
}

// ModelConfig selects the genre classifier. An empty Path means the
// rule-based fallback is used.
type ModelConfig struct {
	Kind string `yaml:"kind"` // feedforward, tensorflow or onnx
	Path string `yaml:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8080",
			MusicDir:  "music",
			BodyLimit: "64M",
		},
		Corpus: CorpusConfig{
			Path: "SpotifySongs.csv",
		},
		Model: ModelConfig{
			Kind: "feedforward",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the file at path over the defaults. A missing file is not an
// error when path is empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := cfg.Decode(f); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges YAML from r into c.
func (c *Config) Decode(r io.Reader) error {
	if err := yaml.NewDecoder(r).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return c.Validate()
}

// Write encodes c as YAML.
func (c *Config) Write(dst io.Writer) error {
	enc := yaml.NewEncoder(dst)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch c.Model.Kind {
	case "feedforward", "tensorflow", "onnx":
	default:
		return fmt.Errorf("unknown model kind %q", c.Model.Kind)
	}
	if c.Server.Addr == "" {
		return errors.New("server addr is empty")
	}
	return nil
}
