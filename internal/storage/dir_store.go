package storage

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DirStore keeps one file per entry in a directory, typically a mounted or
// externally synchronized folder used as the remote copy.
type DirStore struct{ dir string }

func NewDirStore(dir string) (*DirStore, error) {
	if dir == "" {
		return nil, errors.New("storage: directory is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "cannot create store directory %q", dir)
	}
	return &DirStore{dir: dir}, nil
}

func (d *DirStore) Put(_ context.Context, id, envelope string) error {
	if err := checkID(id); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.dir, ".put-*")
	if err != nil {
		return errors.Wrap(err, "cannot create entry file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(envelope); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "cannot write entry file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "cannot sync entry file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "cannot close entry file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), d.path(id)), "cannot replace entry file")
}

func (d *DirStore) Get(_ context.Context, id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	b, err := os.ReadFile(d.path(id))
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "cannot read entry file")
	}
	return string(b), nil
}

// path maps an arbitrary id to a file name that cannot escape the directory.
func (d *DirStore) path(id string) string {
	return filepath.Join(d.dir, base64.RawURLEncoding.EncodeToString([]byte(id))+".env")
}
