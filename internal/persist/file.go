package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// #region file-store
// FileStore keeps one file per key in a directory. Saves go through a temp
// file and an atomic rename so a crash mid-save cannot corrupt a snapshot.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a FileStore.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Load reads the file for key, or (nil, nil) if it does not exist.
func (f *FileStore) Load(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return data, nil
}

// Save writes data to a temp file then renames it over the target.
func (f *FileStore) Save(key string, data []byte) error {
	target := f.path(key)
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// Close is a no-op for the file store.
func (f *FileStore) Close() error { return nil }

// path flattens key separators so per-session keys stay in one directory.
func (f *FileStore) path(key string) string {
	safe := strings.ReplaceAll(key, "/", "__")
	return filepath.Join(f.dir, safe+".json")
}

// #endregion file-store
