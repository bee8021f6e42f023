package memory

import (
	"context"
	"sync"

	"github.com/helian-labs/chatvault/internal/core/domain"
	"github.com/helian-labs/chatvault/internal/core/ports/driven"
)

// Ensure MediaStore implements the interface.
var _ driven.MediaStore = (*MediaStore)(nil)

// MediaStore is an in-memory implementation of driven.MediaStore.
type MediaStore struct {
	mu     sync.RWMutex
	assets map[string]domain.MediaAsset
	bytes  map[string][]byte
}

// NewMediaStore creates a new in-memory media store.
func NewMediaStore() *MediaStore {
	return &MediaStore{
		assets: make(map[string]domain.MediaAsset),
		bytes:  make(map[string][]byte),
	}
}

// putAsset inserts asset metadata unless the ID already exists. Called
// from MessageStore.SaveMessage under its own lock.
func (s *MediaStore) putAsset(a domain.MediaAsset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[a.ID]; ok {
		return
	}
	s.assets[a.ID] = a
}

// GetAsset retrieves asset metadata by ID.
func (s *MediaStore) GetAsset(_ context.Context, id string) (*domain.MediaAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

// FindByDigest returns an existing asset with the same original-bytes
// digest.
func (s *MediaStore) FindByDigest(_ context.Context, digest string) (*domain.MediaAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *domain.MediaAsset
	for _, a := range s.assets {
		if a.Digest != digest {
			continue
		}
		a := a
		if found == nil || a.CreatedAt.Before(found.CreatedAt) {
			found = &a
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found, nil
}

// GetBytes returns the normalized bytes and canonical format.
func (s *MediaStore) GetBytes(_ context.Context, id string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	data, ok := s.bytes[id]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, a.CanonicalFormat, nil
}

// PutBytes stores the normalized bytes for an asset.
func (s *MediaStore) PutBytes(_ context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[id]; !ok {
		return domain.ErrNotFound
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	s.bytes[id] = stored
	return nil
}
