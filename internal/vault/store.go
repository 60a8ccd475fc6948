package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"TrancheVault/internal/model"
)

// Store persists vault state between runs.
type Store interface {
	// Load returns nil, nil when nothing has been saved yet.
	Load() (*model.VaultState, error)
	Save(state *model.VaultState) error
}

// JSONStore keeps the vault state in a single JSON file.
type JSONStore struct {
	Path string
}

func NewJSONStore(path string) *JSONStore { return &JSONStore{Path: path} }

// Load reads the vault state from disk.
func (s *JSONStore) Load() (*model.VaultState, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var state model.VaultState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	return &state, nil
}

// Save writes the state to a temp file and renames it over the old one.
func (s *JSONStore) Save(state *model.VaultState) error {
	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}
