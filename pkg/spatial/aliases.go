package spatial

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Aliases maps keywords to location paths. Lookups walk the keys in
// insertion order, so the order is part of the data.
type Aliases struct {
	keys  []string
	paths map[string][]string
}

// NewAliases creates an empty alias map.
func NewAliases() *Aliases {
	return &Aliases{paths: make(map[string][]string)}
}

// Set binds key to path. Rebinding an existing key keeps its position.
func (a *Aliases) Set(key string, path ...string) *Aliases {
	if a.paths == nil {
		a.paths = make(map[string][]string)
	}
	if _, ok := a.paths[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.paths[key] = append([]string{}, path...)
	return a
}

// Get returns a copy of the path bound to key.
func (a *Aliases) Get(key string) ([]string, bool) {
	p, ok := a.paths[key]
	if !ok {
		return nil, false
	}
	return append([]string{}, p...), true
}

// Has reports whether key is bound.
func (a *Aliases) Has(key string) bool {
	_, ok := a.paths[key]
	return ok
}

// Keys returns the keys in insertion order.
func (a *Aliases) Keys() []string {
	return append([]string{}, a.keys...)
}

// Len returns the number of aliases.
func (a *Aliases) Len() int {
	return len(a.keys)
}

// Clone returns a deep copy.
func (a *Aliases) Clone() *Aliases {
	c := NewAliases()
	for _, k := range a.keys {
		c.Set(k, a.paths[k]...)
	}
	return c
}

// MarshalJSON encodes the aliases as an object in insertion order.
func (a *Aliases) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(a.paths[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of keyword to path, keeping document order.
func (a *Aliases) UnmarshalJSON(data []byte) error {
	*a = *NewAliases()
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("spatial: aliases must be an object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		var path []string
		if err := dec.Decode(&path); err != nil {
			return fmt.Errorf("spatial: alias %v: %w", keyTok, err)
		}
		a.Set(keyTok.(string), path...)
	}
	_, err = dec.Token()
	return err
}

// UnmarshalYAML decodes a mapping of keyword to path, keeping document order.
func (a *Aliases) UnmarshalYAML(value *yaml.Node) error {
	*a = *NewAliases()
	if value.Kind == yaml.AliasNode {
		value = value.Alias
	}
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("spatial: line %d: aliases must be a mapping", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		var path []string
		if err := value.Content[i+1].Decode(&path); err != nil {
			return fmt.Errorf("spatial: alias %q: %w", value.Content[i].Value, err)
		}
		a.Set(value.Content[i].Value, path...)
	}
	return nil
}
