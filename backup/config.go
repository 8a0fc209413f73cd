// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package backup implements the app-level backup directory layout
// (spec.md §6): casbak.conf.json, casbak.log, and casbak.snapshots,
// plus the ls/log date-spec grammar.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/nrdvana/casfs/errs"
)

// ComponentSpec is one `[class_name, version, params]` triple from
// casbak.conf.json.
type ComponentSpec struct {
	ClassName string
	Version   string
	Params    map[string]any
}

// Config mirrors casbak.conf.json's component-name -> spec mapping
// (spec.md §6). cas.path is resolved relative to the backup directory
// at load time, consistent with "no absolute paths are stored inside."
type Config struct {
	Dir        string
	Components map[string]ComponentSpec
}

const configFileName = "casbak.conf.json"

// LoadConfig reads casbak.conf.json from dir.
func LoadConfig(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, configFileName))
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", errs.ErrIO, configFileName, err)
	}

	raw := v.AllSettings()
	cfg := &Config{Dir: dir, Components: make(map[string]ComponentSpec, len(raw))}
	for name, val := range raw {
		spec, err := decodeComponentSpec(val)
		if err != nil {
			return nil, fmt.Errorf("%w: component %q: %v", errs.ErrConfigMismatch, name, err)
		}
		cfg.Components[name] = spec
	}
	return cfg, nil
}

func decodeComponentSpec(val any) (ComponentSpec, error) {
	arr, ok := val.([]any)
	if !ok || len(arr) < 2 {
		return ComponentSpec{}, fmt.Errorf("expected [class_name, version, params] triple")
	}
	class, ok := arr[0].(string)
	if !ok {
		return ComponentSpec{}, fmt.Errorf("class_name must be a string")
	}
	version, ok := arr[1].(string)
	if !ok {
		return ComponentSpec{}, fmt.Errorf("version must be a string")
	}
	spec := ComponentSpec{ClassName: class, Version: version}
	if len(arr) >= 3 {
		if params, ok := arr[2].(map[string]any); ok {
			spec.Params = params
		}
	}
	return spec, nil
}

// CASPath returns the configured `cas.path`, resolved relative to the
// backup directory.
func (c *Config) CASPath() (string, error) {
	spec, ok := c.Components["cas"]
	if !ok {
		return "", fmt.Errorf("%w: casbak.conf.json has no \"cas\" component", errs.ErrConfigMismatch)
	}
	rel, _ := spec.Params["path"].(string)
	if rel == "" {
		return "", fmt.Errorf("%w: \"cas\" component has no path param", errs.ErrConfigMismatch)
	}
	if filepath.IsAbs(rel) {
		return rel, nil
	}
	return filepath.Join(c.Dir, rel), nil
}

// DateFormat returns the configured date_format component's layout
// string, defaulting to the canonical ISO-8601 layout.
func (c *Config) DateFormat() string {
	if spec, ok := c.Components["date_format"]; ok {
		if layout, ok := spec.Params["layout"].(string); ok && layout != "" {
			return layout
		}
	}
	return "2006-01-02T15:04:05Z"
}

// WriteConfig writes a fresh casbak.conf.json (spec.md §6), used by the
// `init` CLI command.
func WriteConfig(dir string, casRelPath, scannerClass, extractorClass string) error {
	doc := map[string]any{
		"cas":       []any{"store.Store", "1", map[string]any{"path": casRelPath}},
		"scanner":   []any{scannerClass, "1", map[string]any{}},
		"extractor": []any{extractorClass, "1", map[string]any{}},
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal config: %v", errs.ErrEncoding, err)
	}
	path := filepath.Join(dir, configFileName)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", errs.ErrIO, path, err)
	}
	return nil
}
