package servers

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileStore persists server definitions to a YAML file, the same way
// profiles are stored. Probe results are runtime state and stay out of
// the file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given file.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the server list. A missing file is an empty list.
func (s *FileStore) Load() ([]Server, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read servers file: %w", err)
	}

	var list []Server
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse servers file: %w", err)
	}
	return list, nil
}

// Save writes the server list back.
func (s *FileStore) Save(list []Server) error {
	data, err := yaml.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to serialize servers: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create servers directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write servers file: %w", err)
	}
	return nil
}
