// Package clientstate holds the buyer-side cart, favorites and session
// containers. Each container persists itself under its own key and shares
// nothing with the others.
package clientstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

const (
	KeyCart      = "zaymazone_cart"
	KeyFavorites = "zaymazone_favorites"
	KeyAuth      = "zaymazone_auth_token"
)

// Persister stores opaque blobs by key. Load returns a nil blob and no error
// when nothing has been saved under key.
type Persister interface {
	Load(key string) ([]byte, error)
	Save(key string, blob []byte) error
}

type MemoryPersister struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{blobs: make(map[string][]byte)}
}

func (m *MemoryPersister) Load(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), blob...), nil
}

func (m *MemoryPersister) Save(key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), blob...)
	return nil
}

// FilePersister keeps one JSON file per key under dir. Writes go through a
// temporary file and a rename so a crash never leaves a torn blob behind.
type FilePersister struct {
	fs  afero.Fs
	dir string
}

func NewFilePersister(fsys afero.Fs, dir string) (*FilePersister, error) {
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FilePersister{fs: fsys, dir: dir}, nil
}

func (p *FilePersister) path(key string) string {
	return filepath.Join(p.dir, key+".json")
}

func (p *FilePersister) Load(key string) ([]byte, error) {
	blob, err := afero.ReadFile(p.fs, p.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return blob, nil
}

func (p *FilePersister) Save(key string, blob []byte) error {
	tmp, err := afero.TempFile(p.fs, p.dir, key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", key, err)
	}
	name := tmp.Name()

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		_ = p.fs.Remove(name)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = p.fs.Remove(name)
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := p.fs.Rename(name, p.path(key)); err != nil {
		_ = p.fs.Remove(name)
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

func load(p Persister, key string, dst any) error {
	blob, err := p.Load(key)
	if err != nil {
		return err
	}
	if len(blob) == 0 {
		return nil
	}
	if err := json.Unmarshal(blob, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func save(p Persister, key string, state any) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return p.Save(key, blob)
}
