// Package memstore is an in-process object store used for local development
// and tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/siva27neelam/story-telling/pkg/storage"
)

type object struct {
	data        []byte
	contentType string
}

type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string]object
	puts    int
}

func New() *Store {
	return &Store{buckets: map[string]map[string]object{}}
}

func (s *Store) EnsureBucket(_ context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucket]; !ok {
		s.buckets[bucket] = map[string]object{}
	}
	return nil
}

func (s *Store) Put(_ context.Context, bucket, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	objects, ok := s.buckets[bucket]
	if !ok {
		objects = map[string]object{}
		s.buckets[bucket] = objects
	}
	objects[key] = object{data: append([]byte(nil), data...), contentType: contentType}
	s.puts++
	return nil
}

func (s *Store) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.buckets[bucket][key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

// List returns keys in lexical order.
func (s *Store) List(_ context.Context, bucket string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.buckets[bucket]))
	for key := range s.buckets[bucket] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets[bucket], key)
	return nil
}

// ContentType returns the content type recorded for key.
func (s *Store) ContentType(bucket, key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buckets[bucket][key].contentType
}

// PutCount returns how many Put calls succeeded.
func (s *Store) PutCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}
