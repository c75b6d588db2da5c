package mapping

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"docmapper/internal/common"
)

// listSeparator splits a scalar list the way the alsoload tag option does.
const listSeparator = "|"

// UnmarshalYAML accepts a sequence of strings or a single scalar. A scalar
// may hold several values separated by "|", as in the alsoload tag option;
// blank values are dropped.
func (s *StringOrArray) UnmarshalYAML(node *yaml.Node) error {
	var raw []string

	switch node.Kind {
	case yaml.ScalarNode:
		var str string
		if err := node.Decode(&str); err != nil {
			return err
		}
		raw = strings.Split(str, listSeparator)

	case yaml.SequenceNode:
		if err := node.Decode(&raw); err != nil {
			return err
		}

	default:
		return fmt.Errorf("line %d: expected string or array, got %v", node.Line, node.Kind)
	}

	out := make(StringOrArray, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	*s = out

	return nil
}

// MarshalYAML writes a single value as a scalar and anything else as a
// sequence.
func (s StringOrArray) MarshalYAML() (any, error) {
	if common.IsSingle(s) {
		return s[0], nil
	}

	return []string(s), nil
}

// First returns the first value, or "" for an empty list.
func (s StringOrArray) First() string {
	v, _ := common.First(s)

	return v
}
