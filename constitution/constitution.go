// Package constitution loads the policy library the gate stage is
// configured with. Policies are markdown modules on disk, indexed by a
// manifest; callers resolve module ids into the single text handed to a
// branch config.
package constitution

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Module describes one policy module from the manifest.
type Module struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	File  string `yaml:"file" json:"file"`
}

// manifest is the on-disk index file format.
type manifest struct {
	Modules []Module `yaml:"modules"`
}

// Registry is an immutable, loaded policy library.
type Registry struct {
	dir     string
	modules map[string]Module
	order   []string
}

// Load reads manifest.yaml from dir and validates that every referenced
// file exists.
func Load(dir string) (*Registry, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "manifest.yaml"))
	if err != nil {
		return nil, fmt.Errorf("constitution manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("constitution manifest parse: %w", err)
	}

	reg := &Registry{dir: dir, modules: make(map[string]Module, len(m.Modules))}
	for _, mod := range m.Modules {
		if mod.ID == "" || mod.File == "" {
			return nil, fmt.Errorf("constitution manifest: module needs id and file (got id=%q file=%q)", mod.ID, mod.File)
		}
		if _, dup := reg.modules[mod.ID]; dup {
			return nil, fmt.Errorf("constitution manifest: duplicate module id %q", mod.ID)
		}
		if _, err := os.Stat(filepath.Join(dir, mod.File)); err != nil {
			return nil, fmt.Errorf("constitution module %q: %w", mod.ID, err)
		}
		reg.modules[mod.ID] = mod
		reg.order = append(reg.order, mod.ID)
	}
	return reg, nil
}

// List returns the modules in manifest order.
func (r *Registry) List() []Module {
	out := make([]Module, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.modules[id])
	}
	return out
}

// Get returns a module by id.
func (r *Registry) Get(id string) (Module, bool) {
	m, ok := r.modules[id]
	return m, ok
}

// Resolve combines the named modules' texts, in the order given, into one
// policy document. Duplicate ids are combined once, keeping first position.
func (r *Registry) Resolve(ids ...string) (string, error) {
	if len(ids) == 0 {
		return "", fmt.Errorf("constitution resolve: no module ids given")
	}

	seen := make(map[string]bool, len(ids))
	var parts []string
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		mod, ok := r.modules[id]
		if !ok {
			return "", fmt.Errorf("constitution resolve: unknown module %q (known: %s)", id, strings.Join(r.knownIDs(), ", "))
		}
		raw, err := os.ReadFile(filepath.Join(r.dir, mod.File))
		if err != nil {
			return "", fmt.Errorf("constitution resolve %q: %w", id, err)
		}
		text := strings.TrimSpace(string(raw))
		if mod.Title != "" {
			text = "# " + mod.Title + "\n\n" + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

func (r *Registry) knownIDs() []string {
	ids := append([]string(nil), r.order...)
	sort.Strings(ids)
	return ids
}
