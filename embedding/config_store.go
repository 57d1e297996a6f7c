package embedding

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// MaxConfigs caps the number of stored embedding configurations.
const MaxConfigs = 10

// ConfigStore persists embedding configurations as a YAML file. All mutations
// rewrite the file atomically and keep the single-active invariant: activating
// one configuration deactivates the rest.
type ConfigStore struct {
	mu      sync.RWMutex
	path    string
	configs []Config
}

func NewConfigStore(path string) (*ConfigStore, error) {
	s := &ConfigStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ConfigStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read embedding configs: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.configs); err != nil {
		return fmt.Errorf("parse embedding configs: %w", err)
	}
	return nil
}

func (s *ConfigStore) saveLocked() error {
	data, err := yaml.Marshal(s.configs)
	if err != nil {
		return fmt.Errorf("encode embedding configs: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write embedding configs: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// List returns a copy of all configurations in insertion order.
func (s *ConfigStore) List() []Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Config(nil), s.configs...)
}

// Active returns the active configuration, or nil when none is active.
func (s *ConfigStore) Active() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.configs {
		if s.configs[i].Active {
			c := s.configs[i]
			return &c
		}
	}
	return nil
}

func (s *ConfigStore) Add(c Config) error {
	if err := c.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.configs) >= MaxConfigs {
		return fmt.Errorf("embedding: at most %d configurations allowed", MaxConfigs)
	}
	if s.indexLocked(c.Name) >= 0 {
		return fmt.Errorf("embedding: configuration %q already exists", c.Name)
	}
	if c.Active {
		s.deactivateAllLocked()
	}
	s.configs = append(s.configs, c)
	return s.saveLocked()
}

func (s *ConfigStore) Update(c Config) error {
	if err := c.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(c.Name)
	if i < 0 {
		return fmt.Errorf("embedding: configuration %q not found", c.Name)
	}
	if c.Active {
		s.deactivateAllLocked()
	}
	s.configs[i] = c
	return s.saveLocked()
}

func (s *ConfigStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(name)
	if i < 0 {
		return fmt.Errorf("embedding: configuration %q not found", name)
	}
	s.configs = append(s.configs[:i], s.configs[i+1:]...)
	return s.saveLocked()
}

// SetActive activates the named configuration and deactivates every other.
// An empty name deactivates all, disabling semantic search.
func (s *ConfigStore) SetActive(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		s.deactivateAllLocked()
		return s.saveLocked()
	}
	i := s.indexLocked(name)
	if i < 0 {
		return fmt.Errorf("embedding: configuration %q not found", name)
	}
	s.deactivateAllLocked()
	s.configs[i].Active = true
	return s.saveLocked()
}

func (s *ConfigStore) indexLocked(name string) int {
	for i := range s.configs {
		if s.configs[i].Name == name {
			return i
		}
	}
	return -1
}

func (s *ConfigStore) deactivateAllLocked() {
	for i := range s.configs {
		s.configs[i].Active = false
	}
}
