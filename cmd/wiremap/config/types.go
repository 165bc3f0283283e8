// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"github.com/go-playground/validator/v10"
)

// configValidate is the validator instance for config structs.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
}

type WiremapConfig struct {
	// Cache: where extracted graphs are persisted
	Cache CacheConfig `yaml:"cache"`

	// Logging: process logger settings
	Logging LoggingConfig `yaml:"logging"`

	// Extraction: parsing and root detection settings
	Extraction ExtractionConfig `yaml:"extraction"`

	// Watch: file watcher settings
	Watch WatchConfig `yaml:"watch"`
}

type CacheConfig struct {
	// Dir overrides the cache directory. Empty keeps the default,
	// a .wiremap directory inside each project root.
	Dir string `yaml:"dir,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"` // e.g. info
	Dir   string `yaml:"dir,omitempty"`                                                  // e.g. ~/.wiremap/logs
	JSON  bool   `yaml:"json"`                                                           // JSON instead of text on stderr
}

type ExtractionConfig struct {
	// RootMarker is the comment annotation that marks a function as a
	// composition root. Empty keeps the built-in default.
	RootMarker string `yaml:"root_marker,omitempty"`

	// MaxFileSizeBytes bounds the size of files handed to the parser.
	// Zero keeps the built-in default.
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes" validate:"gte=0"`

	// EagerRefreshLimit bounds how many graphs are rebuilt eagerly
	// after a batch of file changes.
	EagerRefreshLimit int `yaml:"eager_refresh_limit" validate:"gte=0"`
}

type WatchConfig struct {
	DebounceMillis int      `yaml:"debounce_ms" validate:"gte=0"` // e.g. 250
	Ignore         []string `yaml:"ignore"`                       // e.g. [".git", "node_modules"]
}

// Validate checks the config against its field constraints.
func (c *WiremapConfig) Validate() error {
	return configValidate.Struct(c)
}

func DefaultConfig() WiremapConfig {
	return WiremapConfig{
		Cache: CacheConfig{
			Dir: "",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.wiremap/logs",
			JSON:  false,
		},
		Extraction: ExtractionConfig{
			RootMarker:        "@composition-root",
			MaxFileSizeBytes:  10 * 1024 * 1024,
			EagerRefreshLimit: 4,
		},
		Watch: WatchConfig{
			DebounceMillis: 250,
			Ignore: []string{
				".git", "node_modules", "__pycache__", ".venv", ".idea",
				".wiremap", "build", "dist", "*.swp", "*.tmp",
			},
		},
	}
}
