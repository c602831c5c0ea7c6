package service

import (
	"context"
	"os"
	"path/filepath"
)

// ImageStore persists a representative image fetched during promotion
// and returns a reference the API can serve.  Image storage proper is
// an external concern; this is only the port the promotion flow
// consumes.
type ImageStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// LocalImageStore writes images to a directory on disk and returns a
// URL under the configured base path.  Suitable for development and
// single-node deployments.
type LocalImageStore struct {
	Dir     string
	BaseURL string
}

func (s *LocalImageStore) Save(_ context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return "", err
	}
	return s.BaseURL + "/" + name, nil
}
