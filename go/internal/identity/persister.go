package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Keys stored by the profile.
const (
	KeyDeviceID    = "device_id"
	KeyDisplayName = "display_name"
	KeySpectator   = "spectator"
)

// Persister is a small key/value medium for the local profile.
type Persister interface {
	Load() (map[string]string, error)
	Save(values map[string]string) error
}

// FilePersister keeps the profile in a YAML file.
type FilePersister struct {
	Path string
}

func (f FilePersister) Load() (map[string]string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if values == nil {
		// a document of only null or ~
		return map[string]string{}, nil
	}
	return values, nil
}

func (f FilePersister) Save(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create profile dir: %w", err)
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("failed to replace profile: %w", err)
	}
	return nil
}

// MemoryPersister keeps the profile for the life of the process.
type MemoryPersister struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *MemoryPersister) Load() (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryPersister) Save(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string, len(values))
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}
