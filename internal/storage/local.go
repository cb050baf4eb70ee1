// Package storage persists uploaded attachment files on local disk.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

// StoredName builds a collision-resistant on-disk name: millisecond
// timestamp, a random fragment, then the sanitized original name so
// downloads stay recognizable.
func (s *LocalStore) StoredName(original string) string {
	return fmt.Sprintf("%d-%s-%s",
		time.Now().UnixMilli(),
		uuid.NewString()[:8],
		sanitize(original))
}

func (s *LocalStore) Save(name string, src io.Reader) error {
	dst, err := os.Create(filepath.Join(s.dir, name))

	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

func (s *LocalStore) Remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))

	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

// sanitize strips any path components and characters that would be
// awkward in a URL segment.
func sanitize(name string) string {
	base := filepath.Base(name)

	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}
