// Package instance reads the instance.toml descriptor of a game instance
// directory.
package instance

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"packfetch/internal/fmllibs"
	"packfetch/internal/services"
)

// FileName is the descriptor file inside an instance directory.
const FileName = "instance.toml"

// Component is one installed launch component, such as Forge.
type Component struct {
	UID     string `toml:"uid"`
	Version string `toml:"version,omitempty"`
}

// Instance is a game instance on disk.
type Instance struct {
	Name        string      `toml:"name"`
	GameVersion string      `toml:"intended_version"`
	Traits      []string    `toml:"traits,omitempty"`
	Components  []Component `toml:"components,omitempty"`

	dir string
}

// Load reads dir/instance.toml.
func Load(dir string) (*Instance, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "instance", "load", path, err)
		}
		return nil, services.Wrap(services.ErrFilesystem, "instance", "load", path, err)
	}

	var inst Instance
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&inst); err != nil {
		return nil, services.Wrap(services.ErrValidation, "instance", "parse", path, err)
	}
	if strings.TrimSpace(inst.GameVersion) == "" {
		return nil, services.Wrap(services.ErrValidation, "instance", "parse", fmt.Sprintf("%s: intended_version is required", path), nil)
	}
	inst.dir = dir
	return &inst, nil
}

// Save writes the descriptor into dir.
func (i *Instance) Save(dir string) error {
	data, err := toml.Marshal(i)
	if err != nil {
		return fmt.Errorf("encode instance: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrFilesystem, "instance", "save", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0o644); err != nil {
		return services.Wrap(services.ErrFilesystem, "instance", "save", dir, err)
	}
	i.dir = dir
	return nil
}

// Dir returns the instance directory.
func (i *Instance) Dir() string { return i.dir }

// GameDir is the .minecraft folder inside the instance.
func (i *Instance) GameDir() string { return filepath.Join(i.dir, ".minecraft") }

// LibDir is where legacy FML looks for its extra libraries.
func (i *Instance) LibDir() string { return filepath.Join(i.GameDir(), "lib") }

// ModsDir holds installed mods.
func (i *Instance) ModsDir() string { return filepath.Join(i.GameDir(), "mods") }

func (i *Instance) HasTrait(name string) bool {
	return slices.Contains(i.Traits, name)
}

func (i *Instance) HasComponent(uid string) bool {
	return slices.ContainsFunc(i.Components, func(c Component) bool { return c.UID == uid })
}

// Profile exposes the instance's traits and components.
func (i *Instance) Profile() fmllibs.Profile {
	return i
}

// IntendedVersion is the game version the instance launches.
func (i *Instance) IntendedVersion() string {
	return i.GameVersion
}
