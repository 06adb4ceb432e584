package blob

import (
	"context"
	"io"
	"sync"
)

// Memory is the test double for Store. It records every delete attempt so
// tests can assert on best-effort cleanup.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	deletes []string

	failUpload error
	failDelete error
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) FailUploads(err error) { m.mu.Lock(); m.failUpload = err; m.mu.Unlock() }

func (m *Memory) FailDeletes(err error) { m.mu.Lock(); m.failDelete = err; m.mu.Unlock() }

func (m *Memory) Upload(_ context.Context, path string, r io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpload != nil {
		return "", m.failUpload
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	url := "memory://" + path
	m.objects[url] = data
	return url, nil
}

func (m *Memory) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, url)
	if m.failDelete != nil {
		return m.failDelete
	}
	delete(m.objects, url)
	return nil
}

// Deletes returns every URL a delete was attempted for, in order.
func (m *Memory) Deletes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}

// Has reports whether the blob is still stored.
func (m *Memory) Has(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[url]
	return ok
}
