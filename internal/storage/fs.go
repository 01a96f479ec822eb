package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// fsStorage keeps blobs as files in a single flat directory.
// Writes land in a hidden temp file first and are renamed into place once complete,
// so a stored key never points at a partial file.
type fsStorage struct {
	fs   afero.Fs
	root string
}

// NewFS creates a filesystem blob store rooted at root, creating the directory if missing.
// Pass afero.NewOsFs() in production and afero.NewMemMapFs() in tests.
func NewFS(fsys afero.Fs, root string) (Storage, error) {
	if root == "" {
		return nil, errors.New("storage root is required")
	}
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &fsStorage{fs: fsys, root: root}, nil
}

func (s *fsStorage) path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, ".") || filepath.Base(key) != key {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, key), nil
}

// Save streams r into a new file named by NewKey(ext).
func (s *fsStorage) Save(ctx context.Context, r io.Reader, ext string) (ObjectInfo, error) {
	key := NewKey(ext)
	dst, err := s.path(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if _, err := s.fs.Stat(dst); err == nil {
		return ObjectInfo{}, fmt.Errorf("blob %s already exists", key)
	}

	tmp, err := afero.TempFile(s.fs, s.root, ".upload-*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) (ObjectInfo, error) {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return ObjectInfo{}, err
	}

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return fail(fmt.Errorf("write blob: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("sync blob: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return ObjectInfo{}, fmt.Errorf("close blob: %w", err)
	}
	if err := s.fs.Rename(tmpName, dst); err != nil {
		_ = s.fs.Remove(tmpName)
		return ObjectInfo{}, fmt.Errorf("commit blob: %w", err)
	}

	info, err := s.fs.Stat(dst)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat blob: %w", err)
	}
	return ObjectInfo{Key: key, Size: n, LastModified: info.ModTime()}, nil
}

// Exists reports whether key is present on disk.
func (s *fsStorage) Exists(ctx context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = s.fs.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat blob: %w", err)
	}
	return true, nil
}

// Open returns the blob file for reading. The caller closes it.
func (s *fsStorage) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := s.fs.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ObjectInfo{}, ErrNotFound
	}
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("open blob: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat blob: %w", err)
	}
	return f, ObjectInfo{Key: key, Size: st.Size(), LastModified: st.ModTime()}, nil
}

// Delete removes the blob file.
func (s *fsStorage) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// Ping verifies the storage root is still a directory.
func (s *fsStorage) Ping(ctx context.Context) error {
	st, err := s.fs.Stat(s.root)
	if err != nil {
		return fmt.Errorf("stat storage root: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", s.root)
	}
	return nil
}

// ctxReader stops a copy once the request context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
