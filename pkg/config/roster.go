// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRosterFile reads a YAML mapping of person to responsibilities:
//
//	marco polo:
//	  - cooking carbonara
//	  - discovering america
//	jane doe: [watching netflix, saying hi]
//
// People are returned in file order. Repeated names are kept so the
// dispatcher can reject them.
func LoadRosterFile(path string) ([]PersonConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}
	people, err := ParseRoster(data)
	if err != nil {
		return nil, fmt.Errorf("roster file %s: %w", path, err)
	}
	return people, nil
}

// ParseRoster decodes roster YAML, see LoadRosterFile.
func ParseRoster(data []byte) ([]PersonConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: roster must be a mapping of person to responsibilities", root.Line)
	}

	people := make([]PersonConfig, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode || key.Value == "" {
			return nil, fmt.Errorf("line %d: person name must be a non-empty string", key.Line)
		}
		var responsibilities []string
		if !(val.Kind == yaml.ScalarNode && val.Tag == "!!null") {
			if err := val.Decode(&responsibilities); err != nil {
				return nil, fmt.Errorf("line %d: responsibilities of %q must be a list of strings", val.Line, key.Value)
			}
		}
		people = append(people, PersonConfig{Name: key.Value, Responsibilities: responsibilities})
	}
	return people, nil
}

// People returns the inline roster followed by the roster file entries.
func (c *Config) People() ([]PersonConfig, error) {
	people := append([]PersonConfig(nil), c.Roster...)
	if c.RosterFile == "" {
		return people, nil
	}
	fromFile, err := LoadRosterFile(c.RosterFile)
	if err != nil {
		return nil, err
	}
	return append(people, fromFile...), nil
}
