package fmllibs

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"packfetch/internal/services"
)

//go:embed fmllibs.toml
var defaultTableTOML []byte

// Library is one extra file a legacy FML version needs.
type Library struct {
	Filename   string `toml:"filename"`
	SelfHosted bool   `toml:"self_hosted"`
}

// Table maps a game version to the libraries it needs.
type Table map[string][]Library

type tableFile struct {
	Sets map[string]struct {
		Libraries []Library `toml:"libraries"`
	} `toml:"sets"`
	Versions map[string]string `toml:"versions"`
}

// DefaultTable returns the built-in version table.
func DefaultTable() Table {
	table, err := ParseTable(defaultTableTOML)
	if err != nil {
		panic(fmt.Sprintf("fmllibs: embedded table: %v", err))
	}
	return table
}

// LoadTable reads a table file in the same format as the built-in one.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "fmllibs", "load table", path, err)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates table TOML.
func ParseTable(data []byte) (Table, error) {
	var file tableFile
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		return nil, services.Wrap(services.ErrValidation, "fmllibs", "parse table", "", err)
	}

	table := make(Table, len(file.Versions))
	for version, setName := range file.Versions {
		set, ok := file.Sets[setName]
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "fmllibs", "parse table",
				fmt.Sprintf("version %s refers to unknown set %q", version, setName), nil)
		}
		for _, lib := range set.Libraries {
			name := strings.TrimSpace(lib.Filename)
			if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
				return nil, services.Wrap(services.ErrValidation, "fmllibs", "parse table",
					fmt.Sprintf("set %s: invalid filename %q", setName, lib.Filename), nil)
			}
		}
		table[version] = append([]Library(nil), set.Libraries...)
	}
	return table, nil
}

// Versions returns the table's versions in sorted order.
func (t Table) Versions() []string {
	out := make([]string, 0, len(t))
	for v := range t {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
