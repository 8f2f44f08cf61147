package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"voxelnav/internal/config"
)

// writeConfigFromCentral materialises configuration handed over through the
// environment into cfgPath. YAML documents use the same keys as the JSON file.
func writeConfigFromCentral(cfgPath string) (bool, error) {
	jsonPayload := os.Getenv("NAV_CONFIG_JSON")
	yamlPayload := os.Getenv("NAV_CONFIG_YAML_B64")

	if jsonPayload == "" && yamlPayload == "" {
		return false, nil
	}
	if cfgPath == "" {
		return false, errors.New("central provided configuration but no --config path supplied")
	}

	raw := []byte(jsonPayload)
	if jsonPayload == "" {
		data, err := base64.StdEncoding.DecodeString(yamlPayload)
		if err != nil {
			return false, fmt.Errorf("decode central config yaml: %w", err)
		}
		raw, err = yamlToJSON(data)
		if err != nil {
			return false, fmt.Errorf("parse central config yaml: %w", err)
		}
	}

	cfg := config.Default()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return false, fmt.Errorf("decode central config json: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return false, fmt.Errorf("validate central config: %w", err)
	}

	dir := filepath.Dir(cfgPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return false, fmt.Errorf("marshal config json: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return false, fmt.Errorf("write config file: %w", err)
	}
	return true, nil
}

// yamlToJSON re-encodes a YAML document so the config's JSON decoders
// (durations in particular) apply unchanged.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
