// Package storage provides the durable backends for the starboard registry.
// All of them implement starboard.ConfigStore with full-list overwrite
// semantics; there is no incremental patching.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"starboard-bot/internal/starboard"
)

// FileStore keeps the config list as a UTF-8 JSON array in a single file.
// This is the default backend.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the config list. A missing file is initialized to an empty array
// and treated as empty; anything unparseable is a *starboard.StorageFormatError.
func (s *FileStore) Load(ctx context.Context) ([]starboard.Config, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		if err := s.SaveAll(ctx, nil); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read starboard file: %w", err)
	}

	var configs []starboard.Config
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, &starboard.StorageFormatError{Source: s.path, Err: err}
	}
	return configs, nil
}

// SaveAll overwrites the file with the whole list. The write goes through a
// temp file and rename so readers never observe a truncated array.
func (s *FileStore) SaveAll(ctx context.Context, configs []starboard.Config) error {
	if configs == nil {
		configs = []starboard.Config{}
	}

	data, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode starboard file: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".starboards-*.json")
	if err != nil {
		return fmt.Errorf("write starboard file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write starboard file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write starboard file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write starboard file: %w", err)
	}
	return nil
}
