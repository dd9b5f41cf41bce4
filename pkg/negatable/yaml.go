package negatable

import (
	"gopkg.in/yaml.v3"
)

// MarshalYAML mirrors MarshalJSON: a plain scalar unless negated.
func (s String) MarshalYAML() (any, error) {
	if s.Not {
		return map[string]any{"not": true, "value": s.Value}, nil
	}
	return s.Value, nil
}

// UnmarshalYAML decodes either form with the same tolerance as Decode.
func (s *String) UnmarshalYAML(node *yaml.Node) error {
	if d := DecodeYAML(node); d != nil {
		*s = *d
	} else {
		*s = String{}
	}
	return nil
}

// DecodeYAML is the YAML counterpart of Decode.
func DecodeYAML(node *yaml.Node) *String {
	if node == nil {
		return nil
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}

	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() != "!!str" {
			return nil
		}
		return New(node.Value)
	case yaml.MappingNode:
		var (
			not   bool
			value string
		)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			switch key.Value {
			case "not":
				_ = val.Decode(&not)
			case "value":
				if val.Kind == yaml.ScalarNode && val.ShortTag() == "!!str" {
					value = val.Value
				}
			}
		}
		if value == "" {
			return nil
		}
		return &String{Value: value, Not: not}
	default:
		return nil
	}
}
