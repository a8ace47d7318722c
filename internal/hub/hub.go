package hub

import "sort"

// Package is one installed mod directory
type Package struct {
	Name    string `json:"name" yaml:"name"`
	Path    string `json:"path" yaml:"path"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// Hub is a snapshot of the installed packages
type Hub struct {
	ContentRoot string
	DisabledDir string
	Packages    []Package
}

// New creates an empty Hub
func New(contentRoot, disabledDir string) *Hub {
	return &Hub{
		ContentRoot: contentRoot,
		DisabledDir: disabledDir,
	}
}

// Enabled returns the packages under the content root
func (h *Hub) Enabled() []Package {
	return h.filter(true)
}

// Disabled returns the packages under the disabled directory
func (h *Hub) Disabled() []Package {
	return h.filter(false)
}

func (h *Hub) filter(enabled bool) []Package {
	var out []Package
	for _, p := range h.Packages {
		if p.Enabled == enabled {
			out = append(out, p)
		}
	}
	return out
}

// Get returns a package by name
func (h *Hub) Get(name string) *Package {
	for _, p := range h.Packages {
		if p.Name == name {
			return &p
		}
	}
	return nil
}

// Has checks if a package exists in either set
func (h *Hub) Has(name string) bool {
	return h.Get(name) != nil
}

// Count returns the total number of packages
func (h *Hub) Count() int {
	return len(h.Packages)
}

// Sort orders packages by name, enabled first on ties
func (h *Hub) Sort() {
	sort.SliceStable(h.Packages, func(i, j int) bool {
		if h.Packages[i].Name != h.Packages[j].Name {
			return h.Packages[i].Name < h.Packages[j].Name
		}
		return h.Packages[i].Enabled && !h.Packages[j].Enabled
	})
}
