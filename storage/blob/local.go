package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/notas/core/profile"
)

// LocalStore writes blobs under a directory served at baseURL. Used in development.
type LocalStore struct {
	dir     string
	baseURL string
}

var _ profile.BlobStore = (*LocalStore)(nil)

func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{dir: dir, baseURL: baseURL}
}

func (s *LocalStore) Upload(ctx context.Context, path string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	clean := filepath.Clean("/" + path)
	if strings.Contains(clean, "..") {
		return "", errors.Errorf("invalid blob path %q", path)
	}
	dst := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "creating blob directory")
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", errors.Wrap(err, "writing blob")
	}
	return joinURL(s.baseURL, filepath.ToSlash(clean)), nil
}

func (s *LocalStore) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, ok := keyFromURL(s.baseURL, url)
	if !ok {
		return nil
	}
	clean := filepath.Clean("/" + key)
	if strings.Contains(clean, "..") {
		return errors.Errorf("invalid blob path %q", key)
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(clean)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing blob")
	}
	return nil
}
