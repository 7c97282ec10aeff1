package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// readFile parses a YAML file of ENV_NAME: value pairs. Lists become
// comma-separated values, matching how slice fields are read from the
// environment.
//
//	SERVER_PORT: 9090
//	TRUSTED_PROXIES: [10.0.0.0/8, 192.168.0.0/16]
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for name, v := range raw {
		switch v := v.(type) {
		case nil:
		case []any:
			parts := make([]string, len(v))
			for i, p := range v {
				parts[i] = fmt.Sprint(p)
			}
			values[name] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("config file %s: %s must be a scalar or list", path, name)
		default:
			values[name] = fmt.Sprint(v)
		}
	}
	return values, nil
}

// overlay consults env first and falls back to file values.
func overlay(env func(string) string, file map[string]string) func(string) string {
	return func(name string) string {
		if v := env(name); v != "" {
			return v
		}
		return file[name]
	}
}
