// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package zctx implements the context lifecycle of spec.md §4.6: the
// fixed I/O-thread pool, the socket registry, and shutdown/term
// sequencing that every socket is created from and torn down through.
package zctx

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the context's construction-time configuration (spec.md §6
// "io_threads", "max_sockets", "thread_name_prefix"), loadable from YAML
// the way a deployment's zctx.yaml would be.
type Config struct {
	IOThreads        int    `yaml:"io_threads"`
	MaxSockets       int    `yaml:"max_sockets"`
	ThreadNamePrefix string `yaml:"thread_name_prefix"`
}

// DefaultConfig matches spec.md §6's documented defaults.
var DefaultConfig = Config{
	IOThreads:        1,
	MaxSockets:       1024,
	ThreadNamePrefix: "zlink-io",
}

// LoadConfig reads and parses a YAML config file, filling in
// DefaultConfig for any zero-valued field.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("zctx: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("zctx: parse config %s: %w", path, err)
	}
	if cfg.IOThreads <= 0 {
		cfg.IOThreads = DefaultConfig.IOThreads
	}
	if cfg.MaxSockets <= 0 {
		cfg.MaxSockets = DefaultConfig.MaxSockets
	}
	if cfg.ThreadNamePrefix == "" {
		cfg.ThreadNamePrefix = DefaultConfig.ThreadNamePrefix
	}
	return cfg, nil
}
