package export

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/contacttrace/internal/common"
)

// MemoryStore keeps exports in process memory. It is used when no object
// storage is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	expiry  time.Duration
	now     func() time.Time
}

func NewMemoryStore(expiry time.Duration) *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte), expiry: expiry, now: time.Now}
}

func (s *MemoryStore) Put(ctx context.Context, key, contentType string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return common.Unavailable("export: put", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), body...)
	return nil
}

func (s *MemoryStore) PresignGet(ctx context.Context, key string) (string, time.Time, error) {
	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return "", time.Time{}, fmt.Errorf("export: %s: %w", key, common.ErrorNotFound)
	}
	return "memory://" + key, s.now().Add(s.expiry), nil
}

// Object returns a stored export.
func (s *MemoryStore) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[key]
	return b, ok
}
