package flame

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"packfetch/internal/services"
)

const (
	manifestType    = "minecraftModpack"
	manifestVersion = 1
)

// File is one mod reference of a modpack manifest. FileName, URL and Resolved
// are filled in by ResolveTask.
type File struct {
	ProjectID int64  `json:"projectID"`
	FileID    int64  `json:"fileID"`
	Required  bool   `json:"required"`
	FileName  string `json:"fileName,omitempty"`
	URL       string `json:"downloadURL,omitempty"`
	Resolved  bool   `json:"resolved,omitempty"`
}

// UnmarshalJSON defaults Required to true when the field is absent.
func (f *File) UnmarshalJSON(data []byte) error {
	type plain File
	decoded := plain{Required: true}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*f = File(decoded)
	return nil
}

type ModLoader struct {
	ID      string `json:"id"`
	Primary bool   `json:"primary"`
}

type Minecraft struct {
	Version    string      `json:"version"`
	ModLoaders []ModLoader `json:"modLoaders,omitempty"`
}

// Manifest is a modpack's manifest.json.
type Manifest struct {
	ManifestType    string    `json:"manifestType"`
	ManifestVersion int       `json:"manifestVersion"`
	Name            string    `json:"name"`
	Version         string    `json:"version,omitempty"`
	Author          string    `json:"author,omitempty"`
	Overrides       string    `json:"overrides,omitempty"`
	Minecraft       Minecraft `json:"minecraft"`
	Files           []File    `json:"files"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrFilesystem, "flame", "load manifest", path, err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates manifest bytes.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, services.Wrap(services.ErrValidation, "flame", "parse manifest", "malformed json", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks manifest type, version and file identities.
func (m *Manifest) Validate() error {
	if m.ManifestType != "" && m.ManifestType != manifestType {
		return services.Wrap(services.ErrValidation, "flame", "validate manifest",
			fmt.Sprintf("unsupported manifest type %q", m.ManifestType), nil)
	}
	if m.ManifestVersion != 0 && m.ManifestVersion != manifestVersion {
		return services.Wrap(services.ErrValidation, "flame", "validate manifest",
			fmt.Sprintf("unsupported manifest version %d", m.ManifestVersion), nil)
	}
	for i, f := range m.Files {
		if f.ProjectID <= 0 || f.FileID <= 0 {
			return services.Wrap(services.ErrValidation, "flame", "validate manifest",
				fmt.Sprintf("files[%d]: projectID and fileID must be positive", i), nil)
		}
	}
	return nil
}

// Save writes the manifest, including resolution state, as indented JSON.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	data = append(data, '\n')
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return services.Wrap(services.ErrFilesystem, "flame", "save manifest", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrFilesystem, "flame", "save manifest", path, err)
	}
	return nil
}

// Unresolved returns the indexes of files that are not resolved.
func (m *Manifest) Unresolved() []int {
	var out []int
	for i := range m.Files {
		if !m.Files[i].Resolved {
			out = append(out, i)
		}
	}
	return out
}
