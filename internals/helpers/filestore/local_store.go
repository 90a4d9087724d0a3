package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore writes objects to Root/<bucket>/<path>.
type LocalStore struct {
	Root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		root = "./uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{Root: root}, nil
}

func (s *LocalStore) file(bucket, path string) (string, error) {
	b, err := cleanPath(bucket)
	if err != nil {
		return "", err
	}
	p, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, filepath.FromSlash(b), filepath.FromSlash(p)), nil
}

func (s *LocalStore) Put(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst, err := s.file(bucket, path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s/%s", ErrObjectExists, bucket, path)
		}
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(dst)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	p, _ := cleanPath(path)
	return Locator(bucket, p), nil
}

func (s *LocalStore) Delete(ctx context.Context, locator string) error {
	bucket, p, err := ParseLocator(locator)
	if err != nil {
		return err
	}
	dst, err := s.file(bucket, p)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Open returns the bytes behind a locator.
func (s *LocalStore) Open(locator string) ([]byte, error) {
	bucket, p, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	dst, err := s.file(bucket, p)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return b, err
}

var _ FileStore = (*LocalStore)(nil)
