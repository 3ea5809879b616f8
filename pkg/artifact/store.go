package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrNotFound = errors.New("model artifact not found")

// Store persists and retrieves bundles by model name. Save must replace the
// latest bundle for a name in a single step.
type Store interface {
	Save(ctx context.Context, name string, bundle Bundle) (string, error)
	Load(ctx context.Context, name string) (Bundle, error)
}

func Encode(bundle Bundle) ([]byte, error) {
	return json.MarshalIndent(bundle, "", "  ")
}

// Decode parses and validates a bundle document.
func Decode(content []byte) (Bundle, error) {
	var bundle Bundle
	if err := json.Unmarshal(content, &bundle); err != nil {
		return Bundle{}, fmt.Errorf("decoding bundle: %w", err)
	}
	if err := bundle.Validate(); err != nil {
		return Bundle{}, err
	}
	return bundle, nil
}

func latestName(name string) string {
	return fmt.Sprintf("%s_latest.json", name)
}

func versionedName(name string, bundle Bundle) string {
	return fmt.Sprintf("%s_%s.json", name, bundle.Version.String())
}

// FileStore keeps bundles as JSON files in a directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Save(ctx context.Context, name string, bundle Bundle) (string, error) {
	if err := bundle.Validate(); err != nil {
		return "", err
	}
	payload, err := Encode(bundle)
	if err != nil {
		return "", err
	}
	if err := s.writeAtomic(versionedName(name, bundle), payload); err != nil {
		return "", err
	}
	latest := filepath.Join(s.dir, latestName(name))
	if err := s.writeAtomic(latestName(name), payload); err != nil {
		return "", err
	}
	return latest, nil
}

func (s *FileStore) Load(ctx context.Context, name string) (Bundle, error) {
	content, err := os.ReadFile(filepath.Join(s.dir, latestName(name)))
	if errors.Is(err, os.ErrNotExist) {
		return Bundle{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Bundle{}, err
	}
	return Decode(content)
}

// writeAtomic writes to a temp file in the same directory and renames it over
// the target, so readers see either the old or the new document.
func (s *FileStore) writeAtomic(fileName string, payload []byte) error {
	tmp, err := os.CreateTemp(s.dir, fileName+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, fileName))
}
