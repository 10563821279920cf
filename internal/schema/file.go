package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// registryFile is the on-disk layout of a registry definition
type registryFile struct {
	Tables []TableSchema `yaml:"tables"`
}

// LoadRegistryFile reads a YAML registry definition from an explicit path
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	r, err := DecodeRegistry(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to load registry %s: %w", path, err)
	}
	return r, nil
}

// DecodeRegistry decodes a YAML registry definition. Unknown keys are rejected
// so that a misspelled attribute (e.g. "notnull") never silently drops a constraint.
func DecodeRegistry(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f registryFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("registry definition is empty")
		}
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}

	if len(f.Tables) == 0 {
		return nil, fmt.Errorf("registry definition declares no tables")
	}

	return NewRegistry(f.Tables...)
}
