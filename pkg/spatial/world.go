package spatial

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies a world file encoding.
type Format string

const (
	// FormatJSON is a JSON world file.
	FormatJSON Format = "json"

	// FormatYAML is a YAML world file.
	FormatYAML Format = "yaml"
)

// World is the on-disk layout of a location model.
//
// Example (YAML):
//
//	tree:
//	  the Ville:
//	    Hobbs Cafe:
//	      cafe: [counter, coffee machine]
//	address:
//	  living_area: [the Ville, Lin family's house]
//	  咖啡: [the Ville, Hobbs Cafe, cafe]
type World struct {
	Tree    *Node    `json:"tree" yaml:"tree"`
	Address *Aliases `json:"address" yaml:"address"`
}

// ParseWorld decodes a world in the given format and builds a Spatial.
func ParseWorld(data []byte, format Format, opts ...Option) (*Spatial, error) {
	var w World
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &w)
	case FormatYAML:
		err = yaml.Unmarshal(data, &w)
	default:
		return nil, fmt.Errorf("spatial: unsupported world format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("ParseWorld: %w", err)
	}
	if w.Tree != nil && !w.Tree.isArea {
		return nil, fmt.Errorf("ParseWorld: tree root must be a mapping")
	}
	return New(w.Tree, w.Address, opts...), nil
}

// LoadWorld reads a .json, .yaml or .yml world file.
func LoadWorld(path string, opts ...Option) (*Spatial, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadWorld: %w", err)
	}
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	return ParseWorld(data, format, opts...)
}

func formatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("LoadWorld: cannot infer format of %s", path)
}

func marshalWorld(tree *Node, aliases *Aliases) ([]byte, error) {
	t, err := tree.MarshalJSON()
	if err != nil {
		return nil, err
	}
	a, err := aliases.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return []byte(`{"tree":` + string(t) + `,"address":` + string(a) + `}`), nil
}
