package memory

import (
	"context"
	"sync"
	"time"

	"github.com/helian-labs/chatvault/internal/core/domain"
	"github.com/helian-labs/chatvault/internal/core/ports/driven"
)

// Ensure CursorStore implements the interface.
var _ driven.CursorStore = (*CursorStore)(nil)

// CursorStore is an in-memory implementation of driven.CursorStore.
type CursorStore struct {
	mu      sync.Mutex
	cursors map[int64]domain.SyncCursor
}

// NewCursorStore creates a new in-memory cursor store.
func NewCursorStore() *CursorStore {
	return &CursorStore{
		cursors: make(map[int64]domain.SyncCursor),
	}
}

// Get returns the cursor for a conversation. A conversation never synced
// has position 0.
func (s *CursorStore) Get(_ context.Context, conversationID int64) (*domain.SyncCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cursor, ok := s.cursors[conversationID]
	if !ok {
		return &domain.SyncCursor{ConversationID: conversationID}, nil
	}
	return &cursor, nil
}

// Advance moves the cursor to position, rejecting anything not strictly
// greater than the stored position.
func (s *CursorStore) Advance(_ context.Context, conversationID, position int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.cursors[conversationID].Position
	if position <= stored {
		return &domain.OutOfOrderError{
			ConversationID: conversationID,
			Stored:         stored,
			Proposed:       position,
		}
	}

	s.cursors[conversationID] = domain.SyncCursor{
		ConversationID: conversationID,
		Position:       position,
		LastSuccessAt:  at,
	}
	return nil
}
