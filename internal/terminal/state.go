package terminal

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cutroom/floor-service/internal/models"
)

// State is what the terminal remembers across restarts
type State struct {
	Token    string              `yaml:"token,omitempty"`
	User     *models.SessionUser `yaml:"user,omitempty"`
	Operator OperatorSession     `yaml:"operator"`
}

// StateFile persists State as YAML
type StateFile struct {
	mu   sync.Mutex
	path string
}

// NewStateFile creates a state file at path. An empty path disables persistence.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Load reads the state; a missing file yields an empty state
func (s *StateFile) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *StateFile) load() (State, error) {
	var st State
	if s.path == "" {
		return st, nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, err
	}

	if err := yaml.Unmarshal(data, &st); err != nil {
		return State{}, err
	}
	return st, nil
}

// Update applies fn to the stored state and writes it back
func (s *StateFile) Update(fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return nil
	}

	st, err := s.load()
	if err != nil {
		return err
	}
	fn(&st)

	data, err := yaml.Marshal(&st)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
