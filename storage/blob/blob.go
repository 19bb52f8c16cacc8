// Package blob stores uploaded files and returns their public URL.
package blob

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/profile"
)

// New returns the store selected by conf.Blob.Driver.
func New(conf *core.Config) (profile.BlobStore, error) {
	switch conf.Blob.Driver {
	case "", "local":
		return NewLocalStore(conf.Blob.LocalDir, conf.Blob.PublicBaseURL), nil
	case "s3":
		return NewS3Store(conf)
	default:
		return nil, errors.Errorf("unknown blob driver %q", conf.Blob.Driver)
	}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// keyFromURL reverses joinURL. ok is false for URLs outside base.
func keyFromURL(base, url string) (key string, ok bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key = strings.TrimPrefix(url, prefix)
	return key, key != ""
}
