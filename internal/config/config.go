package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule is one detection rule from the YAML config. Regexes apply to the
// decoded comm/filename strings; Names match case-insensitive substrings of
// either, which is how short blocklists are usually written.
type Rule struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`

	CommRegex     string   `yaml:"comm_regex,omitempty"`
	FilenameRegex string   `yaml:"filename_regex,omitempty"`
	Names         []string `yaml:"names,omitempty"`
}

type Config struct {
	Rules []Rule `yaml:"rules"`

	// PerfBufferPages sizes each CPU's event buffer, in pages. Larger
	// buffers tolerate slower consumers before records are dropped.
	PerfBufferPages int `yaml:"perf_buffer_pages,omitempty"`

	// StorePath is the SQLite database directory; empty disables the
	// event store.
	StorePath string `yaml:"store_path,omitempty"`
}

const defaultPerfBufferPages = 8

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.PerfBufferPages <= 0 {
		cfg.PerfBufferPages = defaultPerfBufferPages
	}
	return &cfg, nil
}
