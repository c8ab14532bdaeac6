package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"dardasha/pkg/domain"
)

// State is what survives a restart: the session token, the signed-in
// profile, and the theme preference.
type State struct {
	Token   string         `json:"token,omitempty"`
	Profile domain.Profile `json:"profile,omitempty"`
	Theme   domain.Theme   `json:"theme,omitempty"`
}

// StateStore persists client state between runs.
type StateStore interface {
	Load() (State, error)
	Save(State) error
	Clear() error
}

// FileStateStore keeps the state in a single JSON file.
type FileStateStore struct {
	path string
}

var _ StateStore = (*FileStateStore)(nil)

func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Load reads the stored state. A missing file yields the zero State.
func (s *FileStateStore) Load() (State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, err
	}
	return state, nil
}

// Save writes the state atomically via a temp file rename.
func (s *FileStateStore) Save(state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Clear removes the state file. Clearing absent state is not an error.
func (s *FileStateStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryStateStore holds the state in process, for tests.
type MemoryStateStore struct {
	state State
}

var _ StateStore = (*MemoryStateStore)(nil)

func NewMemoryStateStore() *MemoryStateStore { return &MemoryStateStore{} }

func (s *MemoryStateStore) Load() (State, error) { return s.state, nil }

func (s *MemoryStateStore) Save(state State) error {
	s.state = state
	return nil
}

func (s *MemoryStateStore) Clear() error {
	s.state = State{}
	return nil
}
