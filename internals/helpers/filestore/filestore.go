// Package filestore keeps the bytes of uploaded answer files. Answers only
// ever see the locator a store hands back.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const locatorScheme = "storage://"

var (
	ErrInvalidLocator = errors.New("filestore: invalid locator")
	ErrObjectExists   = errors.New("filestore: object already exists")
	ErrObjectNotFound = errors.New("filestore: object not found")
)

// FileStore puts bytes under bucket/path and returns an opaque locator.
// Put never overwrites: callers build unique paths and a collision is an error.
type FileStore interface {
	Put(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, locator string) error
}

// Locator formats storage://bucket/path.
func Locator(bucket, path string) string {
	return locatorScheme + strings.Trim(bucket, "/") + "/" + strings.TrimLeft(path, "/")
}

// ParseLocator splits a locator produced by Locator.
func ParseLocator(locator string) (bucket, path string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(locator), locatorScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	bucket, path, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || path == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return bucket, path, nil
}

// IsLocator reports whether s looks like a stored file reference.
func IsLocator(s string) bool {
	_, _, err := ParseLocator(s)
	return err == nil
}

// cleanPath rejects traversal and absolute paths.
func cleanPath(path string) (string, error) {
	p := strings.Trim(strings.ReplaceAll(path, "\\", "/"), "/")
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidLocator)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: bad path %q", ErrInvalidLocator, path)
		}
	}
	return p, nil
}

/* ===== env ===== */

func getEnv(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func envInt(key string, def int) int {
	if v := getEnv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float32) float32 {
	if v := getEnv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil && f >= 0 {
			return float32(f)
		}
	}
	return def
}

/* ===== wiring ===== */

// Open builds the store named by kind ("oss" or "local"), wrapped in an
// ImageOptimizer when convertWebP is set.
func Open(kind, localDir string, convertWebP bool, log *logrus.Logger) (FileStore, error) {
	var (
		fs  FileStore
		err error
	)
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "oss":
		fs, err = NewOSSStore(OSSConfigFromEnv(), log)
	case "", "local":
		fs, err = NewLocalStore(localDir)
	default:
		return nil, fmt.Errorf("unknown FILE_STORE %q", kind)
	}
	if err != nil {
		return nil, err
	}
	if convertWebP {
		fs = NewImageOptimizer(fs, WebPOptionsFromEnv(), log)
	}
	return fs, nil
}
