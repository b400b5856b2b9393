package settings

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

const fileName = "storage.json"

// FileBackend keeps every key in one JSON object on disk, written atomically.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

// NewFileBackend creates (if needed) dir and stores data in dir/storage.json.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("storage directory is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "creating storage directory")
	}
	return &FileBackend{path: filepath.Join(dir, fileName)}, nil
}

// Load implements Backend.
func (b *FileBackend) Load(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	all, err := b.readAll()
	if err != nil {
		return nil, err
	}
	raw, ok := all[key]
	if !ok {
		return nil, ErrNotFound
	}
	return raw, nil
}

// Save implements Backend.
func (b *FileBackend) Save(_ context.Context, key string, data []byte) error {
	if !json.Valid(data) {
		return errors.Errorf("value for %q is not valid JSON", key)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	all, err := b.readAll()
	if err != nil {
		return err
	}
	all[key] = json.RawMessage(data)

	out, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding storage file")
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".storage-*.json")
	if err != nil {
		return errors.Wrap(err, "creating temp storage file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing temp storage file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp storage file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), b.path), "replacing storage file")
}

// Close implements Backend.
func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) readAll() (map[string]json.RawMessage, error) {
	all := make(map[string]json.RawMessage)
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return all, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", b.path)
	}
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", b.path)
	}
	return all, nil
}
