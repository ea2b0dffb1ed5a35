package objstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Memory keeps objects in process. Used when no MinIO endpoint is configured
// and in tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string]memObject
	baseURL string
}

type memObject struct {
	data        []byte
	contentType string
}

var _ ImageStore = (*Memory)(nil)

func NewMemory(baseURL string) *Memory {
	return &Memory{
		objects: make(map[string]memObject),
		baseURL: strings.TrimRight(baseURL, "/") + "/",
	}
}

// Put only accepts the image types ImageExtension knows.
func (m *Memory) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	if _, ok := ImageExtension(contentType); !ok {
		return "", fmt.Errorf("%w: %q", ErrContentType, contentType)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: data, contentType: contentType}
	return m.baseURL + key, nil
}

func (m *Memory) Delete(_ context.Context, url string) error {
	key, err := keyFromURL(m.baseURL, url)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Get returns a stored object's bytes and the content type it was put with.
func (m *Memory) Get(key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj.data, obj.contentType, ok
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
