package route

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a route table from a YAML file. See Load for the format.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open route file %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a route table from YAML. Two layouts are accepted, both ordered:
//
//	# a sequence
//	- {name: user, route: /users/:id, controller: users/profile}
//
//	# a mapping keyed by route name
//	user: {route: /users/:id, controller: users/profile}
func Load(r io.Reader) (*Table, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if err == io.EOF {
			return NewTable()
		}
		return nil, fmt.Errorf("failed to decode route table: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return NewTable()
	}

	doc := root.Content[0]
	var entries []Entry
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&entries); err != nil {
			return nil, fmt.Errorf("failed to decode route table: %w", err)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(doc.Content); i += 2 {
			var e Entry
			if err := doc.Content[i+1].Decode(&e); err != nil {
				return nil, fmt.Errorf("failed to decode route %q: %w", doc.Content[i].Value, err)
			}
			e.Name = doc.Content[i].Value
			entries = append(entries, e)
		}
	default:
		return nil, fmt.Errorf("route table must be a sequence or a mapping, line %d", doc.Line)
	}

	return NewTable(entries...)
}
