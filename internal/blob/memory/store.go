// Package memory implements an in-memory blob Store for tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/unclebandit/aidplug-crm/internal/blob"
)

type blobEntry struct {
	info blob.Info
	data []byte
}

// Store implements blob.Store backed by process memory.
type Store struct {
	mu      sync.RWMutex
	objs    map[string]blobEntry
	baseURL string
}

var _ blob.Store = (*Store)(nil)

// New returns an in-memory store whose public URLs start with baseURL.
func New(baseURL string) *Store {
	return &Store{objs: make(map[string]blobEntry), baseURL: baseURL}
}

func (s *Store) Driver() blob.Driver { return blob.DriverMemory }

// Put stores a blob; without Upsert an existing key is an error.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return blob.Info{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objs[key]; exists && !opts.Upsert {
		return blob.Info{}, fmt.Errorf("blob %s already exists", key)
	}
	info := blob.Info{Key: key, Size: int64(len(b)), ContentType: opts.ContentType, URL: s.PublicURL(key)}
	s.objs[key] = blobEntry{info: info, data: b}
	return info, nil
}

func (s *Store) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

// Object returns the stored bytes for key.
func (s *Store) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objs[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, true
}
