// Package inventory loads the set of lab machines a run targets.
package inventory

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/velumanit/Autotest/internal/remote"
)

// Inventory is the parsed machine list. The defaults block applies to every
// target that leaves the corresponding field empty.
type Inventory struct {
	// Path is the file path the inventory was loaded from.
	Path string `yaml:"-"`

	// Defaults fill in unset fields on every target.
	Defaults remote.Target `yaml:"defaults"`

	// Targets is the list of machines.
	Targets []remote.Target `yaml:"targets"`
}

// LoadFile parses an inventory from a YAML file.
func LoadFile(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	inv, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inventory %s: %w", path, err)
	}

	inv.Path = path
	return inv, nil
}

// Parse parses inventory YAML, folds the defaults block into each target and
// validates the result.
func Parse(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("invalid inventory format: %w", err)
	}

	for i := range inv.Targets {
		if err := mergo.Merge(&inv.Targets[i], inv.Defaults); err != nil {
			return nil, fmt.Errorf("target %d: %w", i+1, err)
		}
		inv.Targets[i] = inv.Targets[i].WithDefaults()
	}

	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Validate checks the inventory for entries that cannot be driven.
func (inv *Inventory) Validate() error {
	if len(inv.Targets) == 0 {
		return fmt.Errorf("inventory has no targets")
	}

	seen := make(map[string]bool, len(inv.Targets))
	for i, t := range inv.Targets {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("target %d: %w", i+1, err)
		}
		addr := t.Addr()
		if seen[addr] {
			return fmt.Errorf("target %d: duplicate entry %s", i+1, addr)
		}
		seen[addr] = true
	}
	return nil
}

// Select returns the targets whose hostname appears in names. Empty names
// selects every target.
func (inv *Inventory) Select(names []string) ([]remote.Target, error) {
	if len(names) == 0 {
		return inv.Targets, nil
	}

	byName := make(map[string]remote.Target, len(inv.Targets))
	for _, t := range inv.Targets {
		byName[t.Hostname] = t
	}

	selected := make([]remote.Target, 0, len(names))
	for _, name := range names {
		t, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("host %s is not in the inventory", name)
		}
		selected = append(selected, t)
	}
	return selected, nil
}
