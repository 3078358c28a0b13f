// Package params resolves stack parameter values from a parameters file and
// command-line KEY=VALUE pairs.
//
// A parameters file is YAML (or JSON, which YAML accepts) in one of two shapes:
//
//	# mapping
//	InstanceType: t3.small
//	Subnets: [subnet-1, subnet-2]
//
//	# the CloudFormation CLI list shape
//	- ParameterKey: InstanceType
//	  ParameterValue: t3.small
//
// List values are joined with commas, the form CloudFormation expects for
// CommaDelimitedList and List<> parameters.
package params

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Resolve loads file (skipped when empty) and applies overrides on top.
func Resolve(file string, overrides []string) (map[string]string, error) {
	values := make(map[string]string)

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read parameters file: %w", err)
		}
		fromFile, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse parameters file %s: %w", file, err)
		}
		for k, v := range fromFile {
			values[k] = v
		}
	}

	pairs, err := ParsePairs(overrides)
	if err != nil {
		return nil, err
	}
	for k, v := range pairs {
		values[k] = v
	}
	return values, nil
}

// Parse decodes a parameters document in either supported shape.
func Parse(data []byte) (map[string]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	values := make(map[string]string)
	if len(doc.Content) == 0 {
		return values, nil
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.MappingNode:
		var raw map[string]any
		if err := root.Decode(&raw); err != nil {
			return nil, err
		}
		for k, v := range raw {
			values[k] = stringify(v)
		}
	case yaml.SequenceNode:
		var list []struct {
			Key   string `yaml:"ParameterKey"`
			Value any    `yaml:"ParameterValue"`
		}
		if err := root.Decode(&list); err != nil {
			return nil, err
		}
		for i, p := range list {
			if p.Key == "" {
				return nil, fmt.Errorf("entry %d has no ParameterKey", i)
			}
			values[p.Key] = stringify(p.Value)
		}
	default:
		return nil, fmt.Errorf("expected a mapping or a list at line %d", root.Line)
	}
	return values, nil
}

// ParsePairs parses KEY=VALUE strings. The value may contain '='.
func ParsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid pair %q: expected KEY=VALUE", pair)
		}
		out[k] = v
	}
	return out, nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}
