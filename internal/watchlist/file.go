package watchlist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
)

type fileState struct {
	Favorites []string  `json:"favorites"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileStore persists the list as a JSON document.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

// Load reads the list. A missing file means nothing was saved yet.
func (f *FileStore) Load() ([]string, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return state.Favorites, true, nil
}

// Save writes the list through a temp file and rename.
func (f *FileStore) Save(symbols []string) error {
	if symbols == nil {
		symbols = []string{}
	}
	data, err := json.MarshalIndent(fileState{Favorites: symbols, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Close() error { return nil }
