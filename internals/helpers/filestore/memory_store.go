package filestore

import (
	"context"
	"fmt"
	"sync"
)

type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps objects in a map. PutFn/DeleteFn override the default
// behavior when set, which is how tests make uploads fail.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]Object

	PutFn    func(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error)
	DeleteFn func(ctx context.Context, locator string) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]Object{}}
}

func (m *MemoryStore) Put(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	if m.PutFn != nil {
		return m.PutFn(ctx, bucket, path, data, contentType)
	}
	p, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	loc := Locator(bucket, p)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[loc]; ok {
		return "", fmt.Errorf("%w: %s", ErrObjectExists, loc)
	}
	m.objects[loc] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return loc, nil
}

func (m *MemoryStore) Delete(ctx context.Context, locator string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, locator)
	}
	if _, _, err := ParseLocator(locator); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objects, locator)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(locator string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[locator]
	return o, ok
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

var _ FileStore = (*MemoryStore)(nil)
