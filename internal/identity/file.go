package identity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type fileDoc struct {
	Profiles map[string]Identity `yaml:"profiles"`
}

// FileBackend stores identities in a YAML file, one entry per profile.
type FileBackend struct {
	mu      sync.Mutex
	path    string
	profile string
}

func NewFileBackend(path, profile string) *FileBackend {
	if profile == "" {
		profile = "default"
	}
	return &FileBackend{path: path, profile: profile}
}

func (f *FileBackend) Load(context.Context) (Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return Identity{}, err
	}
	id, ok := doc.Profiles[f.profile]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return id, nil
}

func (f *FileBackend) Create(_ context.Context, id Identity) error {
	return f.write(id, false)
}

func (f *FileBackend) Save(_ context.Context, id Identity) error {
	return f.write(id, true)
}

func (f *FileBackend) write(id Identity, overwrite bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if doc.Profiles == nil {
		doc.Profiles = map[string]Identity{}
	}
	if _, ok := doc.Profiles[f.profile]; ok && !overwrite {
		return nil
	}
	doc.Profiles[f.profile] = id

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode identity file: %w", err)
	}
	return writeFileAtomic(f.path, data)
}

func (f *FileBackend) read() (fileDoc, error) {
	var doc fileDoc
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, ErrNotFound
	}
	if err != nil {
		return doc, fmt.Errorf("failed to read identity file: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse identity file: %w", err)
	}
	return doc, nil
}

// writeFileAtomic writes through a temp file in the same directory so a
// crash never leaves a half-written identity behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create identity dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".identity-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
