// Package corpus manages YAML-based corpus root configuration.
package corpus

import (
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Root describes one corpus entry point in the source hierarchy.
type Root struct {
	Name        string `yaml:"name"`
	NodeID      string `yaml:"node_id"`
	Description string `yaml:"description"`
	// BoundaryDepth marks how deep below the root a node still starts
	// its own topic. Nodes deeper than this fold their text into the
	// nearest ancestor topic. Zero means only the root itself starts
	// a topic.
	BoundaryDepth int `yaml:"boundary_depth"`
}

// Config is the top-level YAML structure.
type Config struct {
	Roots []Root `yaml:"roots"`
}

// Registry holds loaded corpus roots, keyed by name.
type Registry struct {
	byName map[string]*Root
	order  []string // preserves definition order
}

// Load reads the YAML file at path and returns a Registry.
// If the file does not exist, Load returns an empty Registry (not an error).
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{byName: make(map[string]*Root)}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	r := &Registry{
		byName: make(map[string]*Root, len(cfg.Roots)),
	}
	for i := range cfg.Roots {
		root := &cfg.Roots[i]
		r.byName[root.Name] = root
		r.order = append(r.order, root.Name)
	}
	return r, nil
}

// Get returns a root by name. Returns (nil, false) if not found.
func (r *Registry) Get(name string) (*Root, bool) {
	root, ok := r.byName[name]
	return root, ok
}

// All returns all roots in definition order.
func (r *Registry) All() []*Root {
	result := make([]*Root, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.byName[name])
	}
	return result
}

// Names returns a sorted list of root names.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}
