// Package memory provides in-memory implementations of the driven storage
// ports, used in tests and for ephemeral runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/helian-labs/chatvault/internal/core/domain"
	"github.com/helian-labs/chatvault/internal/core/ports/driven"
)

// Ensure ConversationStore implements the interface.
var _ driven.ConversationStore = (*ConversationStore)(nil)

// ConversationStore is an in-memory implementation of driven.ConversationStore.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[int64]domain.Conversation
}

// NewConversationStore creates a new in-memory conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[int64]domain.Conversation),
	}
}

// Save stores or updates a conversation.
func (s *ConversationStore) Save(_ context.Context, c *domain.Conversation) error {
	if c.ID == 0 {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.conversations[c.ID] = *c
	return nil
}

// Get retrieves a conversation by ID.
func (s *ConversationStore) Get(_ context.Context, id int64) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

// ListActive returns conversations scheduled for ingestion.
func (s *ConversationStore) ListActive(_ context.Context) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []domain.Conversation
	for _, c := range s.conversations {
		if c.Active {
			active = append(active, c)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active, nil
}
